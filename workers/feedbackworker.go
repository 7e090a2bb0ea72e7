package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mrsingh-rishi/articulate/feedback"
	"github.com/mrsingh-rishi/articulate/history"
	"github.com/mrsingh-rishi/articulate/model"
	"github.com/mrsingh-rishi/articulate/pipeline"
	"github.com/mrsingh-rishi/articulate/queue"
	"github.com/mrsingh-rishi/articulate/report"
	"github.com/mrsingh-rishi/articulate/types"
)

// ErrStopped is returned for batches submitted to a stopped worker.
var ErrStopped = errors.New("feedback worker stopped")

// Runner processes a single upload.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*report.Report, error)
}

// Batch is the uploads of one request, processed in order.
type Batch struct {
	SessionID string
	Uploads   []model.Upload
	Options   feedback.Options
	History   *history.Log
	Notify    types.Notifier
}

type Failure struct {
	File  string `json:"file"`
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult lists reports in upload order. A failed upload appears only in
// Failures.
type BatchResult struct {
	Reports  []*report.Report
	Failures []Failure
}

type job struct {
	ctx      context.Context
	requests *queue.Queue[pipeline.Request]
	result   chan BatchResult
}

type FeedbackWorker struct {
	ctx         context.Context
	cancel      context.CancelFunc
	runner      Runner
	concurrency int
	jobs        chan *job
	wg          sync.WaitGroup
	logger      zerolog.Logger
}

func NewFeedbackWorker(runner Runner, concurrency int, logger zerolog.Logger) (*FeedbackWorker, error) {
	// Params Validation
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FeedbackWorker{
		ctx:         ctx,
		cancel:      cancel,
		runner:      runner,
		concurrency: concurrency,
		jobs:        make(chan *job),
		logger:      logger.With().Str("component", "feedback_worker").Logger(),
	}, nil
}

// Start launches the worker goroutines. Each takes whole batches, so uploads
// of one batch never run concurrently.
func (fw *FeedbackWorker) Start() {
	for i := 0; i < fw.concurrency; i++ {
		fw.wg.Add(1)
		go func() {
			defer fw.wg.Done()
			for {
				select {
				case <-fw.ctx.Done():
					return
				case j := <-fw.jobs:
					j.result <- fw.process(j)
				}
			}
		}()
	}
	fw.logger.Info().Int("concurrency", fw.concurrency).Msg("feedback worker started")
}

// Stop cancels the workers and waits for in-flight batches to finish.
func (fw *FeedbackWorker) Stop() {
	fw.cancel()
	fw.wg.Wait()
	fw.logger.Info().Msg("feedback worker stopped")
}

// Submit queues a batch and waits for its result.
func (fw *FeedbackWorker) Submit(ctx context.Context, batch Batch) (BatchResult, error) {
	reqs := make([]pipeline.Request, 0, len(batch.Uploads))
	for i, up := range batch.Uploads {
		reqs = append(reqs, pipeline.Request{
			SessionID: batch.SessionID,
			UploadID:  uuid.NewString(),
			Index:     i,
			Upload:    up,
			Options:   batch.Options,
			History:   batch.History,
			Notify:    batch.Notify,
		})
	}
	for _, req := range reqs {
		batch.Notify.Notify(types.StageEvent{
			SessionID: req.SessionID,
			UploadID:  req.UploadID,
			File:      req.Upload.Name,
			Stage:     types.StageQueued,
			Timestamp: time.Now(),
		})
	}

	j := &job{ctx: ctx, requests: queue.From(reqs...), result: make(chan BatchResult, 1)}
	select {
	case fw.jobs <- j:
	case <-ctx.Done():
		return BatchResult{}, ctx.Err()
	case <-fw.ctx.Done():
		return BatchResult{}, ErrStopped
	}

	select {
	case res := <-j.result:
		return res, nil
	case <-ctx.Done():
		return BatchResult{}, ctx.Err()
	}
}

// process runs the batch in queue order. Once the submitter gives up, the
// uploads still queued are failed without being run.
func (fw *FeedbackWorker) process(j *job) BatchResult {
	res := BatchResult{Reports: []*report.Report{}, Failures: []Failure{}}
	for !j.requests.IsEmpty() {
		if err := j.ctx.Err(); err != nil {
			for _, req := range j.requests.Drain() {
				res.Failures = append(res.Failures, failure(req, err))
			}
			break
		}
		req, ok := j.requests.Dequeue()
		if !ok {
			break
		}
		r, err := fw.runner.Run(j.ctx, req)
		if err != nil {
			res.Failures = append(res.Failures, failure(req, err))
			continue
		}
		res.Reports = append(res.Reports, r)
	}
	return res
}

func failure(req pipeline.Request, err error) Failure {
	return Failure{File: req.Upload.Name, Index: req.Index, Error: err.Error()}
}
