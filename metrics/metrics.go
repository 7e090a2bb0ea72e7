// Package metrics provides Prometheus metrics for the feedback pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "articulate"

type Metrics struct {
	// Upload metrics
	UploadsTotal  *prometheus.CounterVec
	UploadsActive prometheus.Gauge
	AudioBytes    prometheus.Counter

	// Stage metrics
	StageLatency *prometheus.HistogramVec
	StageErrors  *prometheus.CounterVec

	// Feedback metrics
	ParseFallbacks  prometheus.Counter
	Scores          prometheus.Histogram
	TranscriptWords prometheus.Histogram

	// Kafka publish metrics
	KafkaPublishTotal  *prometheus.CounterVec
	KafkaPublishErrors *prometheus.CounterVec

	// Session metrics
	SessionsActive      prometheus.Gauge
	ProgressSubscribers prometheus.Gauge
}

// Default is registered with the global Prometheus registry.
var Default = New(prometheus.DefaultRegisterer)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads processed by outcome",
		}, []string{"status"}),
		UploadsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_active",
			Help:      "Uploads currently in the pipeline",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of external pipeline stages in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"stage"}),
		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Pipeline stage failures",
		}, []string{"stage"}),

		ParseFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_parse_fallbacks_total",
			Help:      "Feedback replies that could not be parsed",
		}),
		Scores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feedback_score",
			Help:      "Grammar scores recorded in session histories",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		TranscriptWords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcript_word_count",
			Help:      "Words per transcript",
			Buckets:   []float64{10, 25, 50, 100, 200, 400, 800},
		}),

		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Report events published",
		}, []string{"topic"}),
		KafkaPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Report event publish errors",
		}, []string{"topic"}),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Browser sessions held in memory",
		}),
		ProgressSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_subscribers",
			Help:      "Open progress websocket connections",
		}),
	}
}

// RecordUploadStart records an upload entering the pipeline.
func (m *Metrics) RecordUploadStart(bytes int) {
	m.UploadsActive.Inc()
	m.AudioBytes.Add(float64(bytes))
}

// RecordUploadEnd records the outcome: "success", "fallback" or "failed".
func (m *Metrics) RecordUploadEnd(status string) {
	m.UploadsActive.Dec()
	m.UploadsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordStage(stage string, seconds float64, err error) {
	m.StageLatency.WithLabelValues(stage).Observe(seconds)
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) RecordFeedback(score, words int, fallback bool) {
	m.Scores.Observe(float64(score))
	m.TranscriptWords.Observe(float64(words))
	if fallback {
		m.ParseFallbacks.Inc()
	}
}

func (m *Metrics) RecordKafkaPublish(topic string, err error) {
	m.KafkaPublishTotal.WithLabelValues(topic).Inc()
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic).Inc()
	}
}
