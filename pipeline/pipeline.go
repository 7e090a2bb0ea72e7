// Package pipeline runs one upload through ingestion, transcription, rate
// estimation and feedback, producing a report and a history entry.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrsingh-rishi/articulate/feedback"
	"github.com/mrsingh-rishi/articulate/history"
	"github.com/mrsingh-rishi/articulate/ingest"
	"github.com/mrsingh-rishi/articulate/logging"
	"github.com/mrsingh-rishi/articulate/metrics"
	"github.com/mrsingh-rishi/articulate/model"
	"github.com/mrsingh-rishi/articulate/rate"
	"github.com/mrsingh-rishi/articulate/report"
	"github.com/mrsingh-rishi/articulate/stt"
	"github.com/mrsingh-rishi/articulate/telemetry"
	"github.com/mrsingh-rishi/articulate/types"
)

// DefaultTimeout bounds the external calls of a single upload.
const DefaultTimeout = 2 * time.Minute

// Publisher receives every completed report.
type Publisher interface {
	PublishReport(ctx context.Context, sessionID string, r *report.Report) error
}

type Config struct {
	TempDir string
	Timeout time.Duration
}

// Request is one upload with everything needed to process it.
type Request struct {
	SessionID string
	UploadID  string
	Index     int // position of the upload in its batch
	Upload    model.Upload
	Options   feedback.Options
	History   *history.Log
	Notify    types.Notifier
}

type Pipeline struct {
	transcriber stt.Transcriber
	scorer      *feedback.Scorer
	publisher   Publisher
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	cfg         Config
	logger      zerolog.Logger
	now         func() time.Time
}

func New(transcriber stt.Transcriber, scorer *feedback.Scorer, publisher Publisher, m *metrics.Metrics, cfg Config, logger zerolog.Logger) (*Pipeline, error) {
	if transcriber == nil {
		return nil, fmt.Errorf("transcriber is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if m == nil {
		m = metrics.Default
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Pipeline{
		transcriber: transcriber,
		scorer:      scorer,
		publisher:   publisher,
		metrics:     m,
		tracer:      telemetry.Tracer(),
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "pipeline"),
		now:         time.Now,
	}, nil
}

// Run processes one upload. Any returned error means the upload produced no
// report and no history entry. The temporary audio file is removed on every
// path.
func (p *Pipeline) Run(ctx context.Context, req Request) (*report.Report, error) {
	if req.UploadID == "" {
		req.UploadID = uuid.NewString()
	}
	logger := logging.WithUpload(p.logger, req.SessionID, req.UploadID, req.Upload.Name)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("upload.id", req.UploadID),
		attribute.String("upload.file", req.Upload.Name),
		attribute.Int("upload.bytes", req.Upload.Size()),
		attribute.String("feedback.style", string(req.Options.Style)),
	))
	defer span.End()

	p.metrics.RecordUploadStart(req.Upload.Size())
	r, err := p.run(ctx, req, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.RecordUploadEnd("failed")
		p.notify(req, types.StageFailed, err.Error())
		logger.Error().Err(err).Msg("upload failed")
		return nil, err
	}

	status := "success"
	if r.ParseFailed {
		status = "fallback"
	}
	p.metrics.RecordUploadEnd(status)
	p.notify(req, types.StageComplete, "")
	logger.Info().
		Str("score", r.Feedback.Score).
		Int("words", r.Rate.WordCount).
		Bool("parseFailed", r.ParseFailed).
		Msg("upload processed")
	return r, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, logger zerolog.Logger) (*report.Report, error) {
	audio, err := ingest.Materialize(p.cfg.TempDir, req.Upload)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := audio.Release(); err != nil {
			logger.Warn().Err(err).Str("path", audio.Path).Msg("temp audio not removed")
		}
	}()
	fingerprint := ingest.Fingerprint(req.Upload.Data)
	logger.Debug().Str("fingerprint", fingerprint).Str("path", audio.Path).Msg("audio materialized")

	p.notify(req, types.StageTranscribing, "")
	transcript, err := p.transcribe(ctx, audio.Path)
	if err != nil {
		return nil, errors.Wrap(err, "transcription failed")
	}
	p.notify(req, types.StageTranscribed, "")

	estimate := rate.Compute(transcript)

	p.notify(req, types.StageAnalyzing, "")
	outcome, err := p.score(ctx, transcript, req.Options)
	if err != nil {
		return nil, errors.Wrap(err, "feedback failed")
	}
	if outcome.ParseFailed() {
		p.notify(req, types.StageParseFallback, outcome.ParseErr.Error())
	}

	r := report.New(report.Input{
		File:        req.Upload.Name,
		Index:       req.Index,
		Transcript:  transcript,
		Fingerprint: fingerprint,
		Style:       req.Options.Style,
		Rate:        estimate,
		Outcome:     outcome,
	}, p.now())

	if req.History != nil {
		req.History.Append(r.Score())
	}
	p.metrics.RecordFeedback(r.Score(), estimate.WordCount, r.ParseFailed)

	if p.publisher != nil {
		if err := p.publisher.PublishReport(ctx, req.SessionID, r); err != nil {
			logger.Warn().Err(err).Msg("report event not published")
		}
	}
	return r, nil
}

func (p *Pipeline) transcribe(ctx context.Context, path string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.transcribe")
	defer span.End()

	start := time.Now()
	transcript, err := p.transcriber.Transcribe(ctx, path)
	p.metrics.RecordStage("transcribe", time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("transcript.chars", len(transcript)))
	return transcript, nil
}

func (p *Pipeline) score(ctx context.Context, transcript string, opts feedback.Options) (feedback.Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.feedback")
	defer span.End()

	start := time.Now()
	outcome, err := p.scorer.Score(ctx, transcript, opts)
	p.metrics.RecordStage("feedback", time.Since(start).Seconds(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feedback failed")
		return feedback.Outcome{}, err
	}
	span.SetAttributes(attribute.Bool("feedback.parse_failed", outcome.ParseFailed()))
	return outcome, nil
}

func (p *Pipeline) notify(req Request, stage types.Stage, message string) {
	req.Notify.Notify(types.StageEvent{
		SessionID: req.SessionID,
		UploadID:  req.UploadID,
		File:      req.Upload.Name,
		Stage:     stage,
		Message:   message,
		Timestamp: p.now(),
	})
}
