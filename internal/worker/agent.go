// Package worker runs video jobs in the background on a bounded pool.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"shortforge/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrShuttingDown is returned by Submit once shutdown has begun.
var ErrShuttingDown = errors.New("server shutting down")

// Processor runs one job to a terminal state.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// AgentConfig holds configuration for the worker agent.
type AgentConfig struct {
	Concurrency  int           // Jobs processed at once (default: 4)
	JobTimeout   time.Duration // Upper bound for one job (default: 30m)
	DrainTimeout time.Duration // Wait for in-flight jobs on shutdown (default: 2m)
}

// Agent runs submitted jobs in the background, at most Concurrency at a
// time. Jobs beyond that wait, still pending, for a free slot.
type Agent struct {
	processor Processor
	store     store.JobStore
	config    AgentConfig
	logger    *slog.Logger
	tracer    trace.Tracer

	sem      chan struct{}
	wg       sync.WaitGroup
	inFlight atomic.Int64

	mu       sync.Mutex
	closed   bool
	stopping chan struct{}

	// jobCtx is the parent of every job context. It outlives shutdown until
	// the drain timeout expires.
	jobCtx    context.Context
	cancelJob context.CancelFunc
	done      chan struct{}
}

// NewAgent creates a new worker agent. The store is used to mark jobs failed
// when they cannot run.
func NewAgent(p Processor, js store.JobStore, config AgentConfig, logger *slog.Logger) *Agent {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Minute
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		processor: p,
		store:     js,
		config:    config,
		logger:    logger,
		tracer:    otel.Tracer("shortforge/worker"),
		sem:       make(chan struct{}, config.Concurrency),
		stopping:  make(chan struct{}),
		jobCtx:    jobCtx,
		cancelJob: cancel,
		done:      make(chan struct{}),
	}

	meter := otel.Meter("shortforge/worker")
	if _, err := meter.Int64ObservableGauge("shortforge.jobs.in_flight",
		metric.WithDescription("Jobs currently holding a worker slot"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(a.inFlight.Load())
			return nil
		}),
	); err != nil {
		logger.Warn("Failed to register in-flight gauge", "error", err)
	}

	return a
}

// Submit schedules jobID for background processing. It never blocks.
func (a *Agent) Submit(jobID string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrShuttingDown
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go a.run(jobID)
	return nil
}

// InFlight returns the number of jobs currently holding a slot.
func (a *Agent) InFlight() int64 {
	return a.inFlight.Load()
}

func (a *Agent) run(jobID string) {
	defer a.wg.Done()

	select {
	case a.sem <- struct{}{}:
	case <-a.stopping:
		a.abandon(jobID)
		return
	}
	defer func() { <-a.sem }()

	// A slot may be won in the same instant shutdown begins.
	select {
	case <-a.stopping:
		a.abandon(jobID)
		return
	default:
	}

	a.inFlight.Add(1)
	defer a.inFlight.Add(-1)

	ctx, span := a.tracer.Start(a.jobCtx, "process_job",
		trace.WithAttributes(attribute.String("job.id", jobID)),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Job panicked", "job_id", jobID, "panic", r, "stack", string(debug.Stack()))
			span.SetStatus(codes.Error, "panic")
			a.markFailed(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	a.logger.Info("Processing job", "job_id", jobID)
	if err := a.processor.Process(ctx, jobID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job failed")
	}
}

// abandon fails a job that never got a slot.
func (a *Agent) abandon(jobID string) {
	a.logger.Warn("Job dropped at shutdown", "job_id", jobID)
	a.markFailed(jobID, ErrShuttingDown.Error())
}

func (a *Agent) markFailed(jobID, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := store.JobStatusFailed
	if err := a.store.Update(ctx, jobID, store.JobUpdate{Status: &status, Error: &msg}); err != nil {
		a.logger.Error("Failed to mark job failed", "job_id", jobID, "error", err)
		return
	}
	if err := a.store.AddLog(ctx, jobID, "ERROR: "+msg); err != nil {
		a.logger.Error("Failed to append job log", "job_id", jobID, "error", err)
	}
}

// Shutdown stops accepting jobs, fails those still waiting for a slot and
// waits up to DrainTimeout (or until ctx is done) for running jobs. Jobs
// still running after that are cancelled and waited for.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return nil
	}
	a.closed = true
	close(a.stopping)
	a.mu.Unlock()

	a.logger.Info("Waiting for running jobs to finish", "in_flight", a.inFlight.Load())

	drained := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(a.config.DrainTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-drained:
	case <-timer.C:
		err = fmt.Errorf("drain timeout after %v", a.config.DrainTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		a.logger.Warn("Cancelling running jobs", "reason", err)
		a.cancelJob()
		<-drained
	}
	a.cancelJob()
	close(a.done)
	return err
}

// Done returns a channel that is closed when the agent has fully stopped.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}
