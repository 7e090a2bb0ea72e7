package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Bind        string `yaml:"bind"`
	Port        int    `yaml:"port"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
}

type OpenAIConfig struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	TranscriptionModel string `yaml:"transcription_model"`
	FeedbackModel      string `yaml:"feedback_model"`
	JSONMode           bool   `yaml:"json_mode"`
}

type ProviderConfig struct {
	Provider string `yaml:"provider"` // openai, mock
}

type PipelineConfig struct {
	TempDir   string `yaml:"temp_dir"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Workers   int    `yaml:"workers"`
}

type SessionConfig struct {
	TTLMinutes     int `yaml:"ttl_minutes"`
	MaxReports     int `yaml:"max_reports"`
	HistoryDisplay int `yaml:"history_display"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

type TelemetryConfig struct {
	Tracing        string `yaml:"tracing"` // none, stdout
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Config struct {
	ServiceName string          `yaml:"service_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	OpenAI      OpenAIConfig    `yaml:"openai"`
	STT         ProviderConfig  `yaml:"stt"`
	LLM         ProviderConfig  `yaml:"llm"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Session     SessionConfig   `yaml:"session"`
	Logging     LoggingConfig   `yaml:"logging"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Kafka       KafkaConfig     `yaml:"kafka"`
}

func Default() Config {
	return Config{
		ServiceName: "articulate",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:        "0.0.0.0",
			Port:        3000,
			BodyLimitMB: 100,
		},
		OpenAI: OpenAIConfig{
			TranscriptionModel: "whisper-1",
			FeedbackModel:      "gpt-4",
		},
		STT:      ProviderConfig{Provider: "openai"},
		LLM:      ProviderConfig{Provider: "openai"},
		Pipeline: PipelineConfig{TimeoutMS: 120000, Workers: 1},
		Session: SessionConfig{
			TTLMinutes:     120,
			MaxReports:     50,
			HistoryDisplay: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Tracing:        "none",
			MetricsEnabled: true,
		},
		Kafka: KafkaConfig{
			Topic: "articulate.feedback.reports",
		},
	}
}

// Load reads the optional YAML file at path, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "ARTICULATE_SERVICE_NAME")
	overrideString(&cfg.Environment, "ARTICULATE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "ARTICULATE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "ARTICULATE_HTTP_PORT")
	overrideInt(&cfg.HTTP.BodyLimitMB, "ARTICULATE_HTTP_BODY_LIMIT_MB")
	overrideString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	overrideString(&cfg.OpenAI.TranscriptionModel, "ARTICULATE_OPENAI_TRANSCRIPTION_MODEL")
	overrideString(&cfg.OpenAI.FeedbackModel, "ARTICULATE_OPENAI_FEEDBACK_MODEL")
	overrideBool(&cfg.OpenAI.JSONMode, "ARTICULATE_OPENAI_JSON_MODE")
	overrideString(&cfg.STT.Provider, "ARTICULATE_STT_PROVIDER")
	overrideString(&cfg.LLM.Provider, "ARTICULATE_LLM_PROVIDER")
	overrideString(&cfg.Pipeline.TempDir, "ARTICULATE_PIPELINE_TEMP_DIR")
	overrideInt(&cfg.Pipeline.TimeoutMS, "ARTICULATE_PIPELINE_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.Workers, "ARTICULATE_PIPELINE_WORKERS")
	overrideInt(&cfg.Session.TTLMinutes, "ARTICULATE_SESSION_TTL_MINUTES")
	overrideInt(&cfg.Session.MaxReports, "ARTICULATE_SESSION_MAX_REPORTS")
	overrideInt(&cfg.Session.HistoryDisplay, "ARTICULATE_SESSION_HISTORY_DISPLAY")
	overrideString(&cfg.Logging.Level, "ARTICULATE_LOG_LEVEL")
	overrideString(&cfg.Logging.Format, "ARTICULATE_LOG_FORMAT")
	overrideString(&cfg.Telemetry.Tracing, "ARTICULATE_TELEMETRY_TRACING")
	overrideBool(&cfg.Telemetry.MetricsEnabled, "ARTICULATE_TELEMETRY_METRICS_ENABLED")
	overrideBool(&cfg.Kafka.Enabled, "ARTICULATE_KAFKA_ENABLED")
	overrideStringSlice(&cfg.Kafka.Brokers, "ARTICULATE_KAFKA_BROKERS")
	overrideString(&cfg.Kafka.Topic, "ARTICULATE_KAFKA_TOPIC")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.BodyLimitMB <= 0 {
		return errors.New("http.body_limit_mb must be positive")
	}
	for name, provider := range map[string]string{"stt.provider": cfg.STT.Provider, "llm.provider": cfg.LLM.Provider} {
		switch provider {
		case "openai", "mock":
		default:
			return fmt.Errorf("%s must be one of openai|mock", name)
		}
	}
	if cfg.NeedsOpenAI() && strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return errors.New("OPENAI_API_KEY must be set when an openai provider is selected")
	}
	if cfg.Pipeline.TimeoutMS < 0 {
		return errors.New("pipeline.timeout_ms must be >= 0")
	}
	if cfg.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be >= 1")
	}
	if cfg.Session.TTLMinutes <= 0 {
		return errors.New("session.ttl_minutes must be positive")
	}
	if cfg.Session.MaxReports <= 0 {
		return errors.New("session.max_reports must be positive")
	}
	if cfg.Session.HistoryDisplay <= 0 {
		return errors.New("session.history_display must be positive")
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return errors.New("logging.format must be one of json|console")
	}
	switch cfg.Telemetry.Tracing {
	case "none", "stdout":
	default:
		return errors.New("telemetry.tracing must be one of none|stdout")
	}
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers must not be empty when kafka is enabled")
		}
		if cfg.Kafka.Topic == "" {
			return errors.New("kafka.topic must not be empty when kafka is enabled")
		}
	}
	return nil
}

// NeedsOpenAI reports whether any provider talks to the OpenAI API.
func (c Config) NeedsOpenAI() bool {
	return c.STT.Provider == "openai" || c.LLM.Provider == "openai"
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Bind, c.HTTP.Port)
}
