// Package worker provides an asynchronous worker pool for archiving
// completed turns using the provided storage.Driver and announcing them
// through the provided eventstream.Publisher.
//
// The pool decouples persistence from the streaming hot path so that the
// client never waits on a database or broker to read its next frame.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turnpike-ai/turnpike/pkg/eventstream"
	"github.com/turnpike-ai/turnpike/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Provider    string
	Record      *storage.TurnRecord
	StartedAt   time.Time
	CompletedAt time.Time
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for archiving turn records.
	Driver storage.Driver

	// Publisher is the optional eventstream backend announcing
	// completed turns. Nil disables event publishing.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes archive jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("archive job queued",
			zap.String("turn_id", job.Record.ID),
			zap.String("provider", job.Provider),
		)
		return true
	default:
		p.logger.Error("archive job not queued, queue full, job dropped",
			zap.String("turn_id", job.Record.ID),
			zap.String("provider", job.Provider),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("archive worker stopped", zap.Uint("worker_id", id))
}

// processJob archives the turn record and, when a publisher is configured,
// announces the completed turn.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if err := p.config.Driver.Put(ctx, job.Record); err != nil {
		p.logger.Error("async turn archive failed",
			zap.String("turn_id", job.Record.ID),
			zap.String("provider", job.Provider),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("turn archived",
		zap.String("turn_id", job.Record.ID),
		zap.String("session_id", job.Record.SessionID),
		zap.String("provider", job.Provider),
	)

	if p.config.Publisher == nil {
		return
	}

	event := p.buildEvent(job)
	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		// Publishing is best-effort; the record is already archived.
		p.logger.Warn("failed to publish turn event",
			zap.String("turn_id", job.Record.ID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("turn event published",
		zap.String("turn_id", job.Record.ID),
		zap.String("event_id", event.EventID),
	)
}

func (p *Pool) buildEvent(job Job) *eventstream.TurnCompletedEvent {
	return &eventstream.TurnCompletedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: eventstream.EventSource{
			Provider: job.Provider,
			Model:    job.Record.Model,
		},
		Turn: eventstream.TurnMeta{
			TurnID:        job.Record.ID,
			SessionID:     job.Record.SessionID,
			FinishReason:  job.Record.FinishReason,
			Usage:         job.Record.Usage,
			ArtifactCount: len(job.Record.Artifacts),
			StartedAt:     job.StartedAt,
			CompletedAt:   job.CompletedAt,
			DurationMs:    job.CompletedAt.Sub(job.StartedAt).Milliseconds(),
		},
	}
}
