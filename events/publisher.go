// Package events publishes completed feedback reports to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/mrsingh-rishi/articulate/metrics"
	"github.com/mrsingh-rishi/articulate/report"
)

// ReportEvent is the message body for one completed report. The transcript
// is not included.
type ReportEvent struct {
	SessionID      string    `json:"sessionId"`
	ReportID       string    `json:"reportId"`
	File           string    `json:"file"`
	Fingerprint    string    `json:"fingerprint"`
	Score          int       `json:"score"`
	CEFR           string    `json:"cefrLevel"`
	ContentType    string    `json:"contentType"`
	WordCount      int       `json:"wordCount"`
	WordsPerMinute float64   `json:"wordsPerMinute"`
	Style          string    `json:"style"`
	ParseFailed    bool      `json:"parseFailed"`
	CreatedAt      time.Time `json:"createdAt"`
}

func NewReportEvent(sessionID string, r *report.Report) ReportEvent {
	return ReportEvent{
		SessionID:      sessionID,
		ReportID:       r.ID,
		File:           r.File,
		Fingerprint:    r.Fingerprint,
		Score:          r.Score(),
		CEFR:           r.Feedback.CEFR,
		ContentType:    r.Feedback.ContentType,
		WordCount:      r.Rate.WordCount,
		WordsPerMinute: r.Rate.WordsPerMinute,
		Style:          string(r.Style),
		ParseFailed:    r.ParseFailed,
		CreatedAt:      r.CreatedAt,
	}
}

type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes report events to one topic. When Kafka is disabled it only
// logs the event.
type Publisher struct {
	writer  messageWriter
	topic   string
	enabled bool
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func New(cfg *Config, m *metrics.Metrics, logger zerolog.Logger) *Publisher {
	logger = logger.With().Str("component", "events").Logger()
	if m == nil {
		m = metrics.Default
	}
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info().Msg("Kafka disabled, using log-only mode")
		p := &Publisher{metrics: m, logger: logger}
		if cfg != nil {
			p.topic = cfg.Topic
		}
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writer:  writer,
		topic:   cfg.Topic,
		enabled: true,
		metrics: m,
		logger:  logger,
	}
}

// PublishReport sends the event keyed by session so a session's reports stay
// ordered within a partition.
func (p *Publisher) PublishReport(ctx context.Context, sessionID string, r *report.Report) error {
	event := NewReportEvent(sessionID, r)
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal report event")
	}

	p.logger.Debug().
		Str("topic", p.topic).
		Str("key", sessionID).
		RawJSON("payload", payload).
		Msg("Publishing report event")

	if !p.enabled || p.writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(sessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("feedback.report")},
		},
	}
	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.RecordKafkaPublish(p.topic, err)
	if err != nil {
		p.logger.Error().Err(err).Str("topic", p.topic).Msg("Failed to write to Kafka")
		return errors.Wrap(err, "publish report event")
	}
	return nil
}

func (p *Publisher) Enabled() bool {
	return p.enabled
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
