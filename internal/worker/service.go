package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shortforge/internal/store"
	"shortforge/internal/workspace"

	"github.com/google/uuid"
)

// ErrInvalidInput is returned by CreateJob for a blank topic or a
// non-positive duration.
var ErrInvalidInput = errors.New("topic and duration are required")

// Submitter hands a stored job to background execution.
type Submitter interface {
	Submit(jobID string) error
}

// Service is the job API used by the HTTP layer.
type Service struct {
	store     store.JobStore
	submitter Submitter
	layout    workspace.Layout
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

// NewService creates the job service. metrics may be nil.
func NewService(js store.JobStore, submitter Submitter, layout workspace.Layout, logger *slog.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     js,
		submitter: submitter,
		layout:    layout,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// CreateJob stores a pending job and schedules it. It returns as soon as the
// record is stored.
func (s *Service) CreateJob(ctx context.Context, topic string, duration int) (*store.Job, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" || duration <= 0 {
		return nil, ErrInvalidInput
	}

	now := s.now().UTC()
	job := &store.Job{
		ID:        uuid.NewString(),
		Topic:     topic,
		Duration:  duration,
		Status:    store.JobStatusPending,
		Progress:  0,
		CreatedAt: now,
		Logs:      []string{store.FormatLogEntry(now, "Job created for topic: "+topic)},
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.metrics.created(ctx)

	if err := s.submitter.Submit(job.ID); err != nil {
		msg := err.Error()
		status := store.JobStatusFailed
		if uerr := s.store.Update(context.WithoutCancel(ctx), job.ID, store.JobUpdate{Status: &status, Error: &msg}); uerr != nil {
			s.logger.Error("Failed to mark unscheduled job failed", "job_id", job.ID, "error", uerr)
		}
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	s.logger.Info("Job created", "job_id", job.ID, "topic", topic, "duration", duration)
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*store.Job, error) {
	return s.store.Get(ctx, id)
}

// ListJobs returns all jobs, newest first.
func (s *Service) ListJobs(ctx context.Context) ([]*store.Job, error) {
	return s.store.GetAll(ctx)
}

// DeleteJob removes the job record and its final video. The output path is
// removed even while the job is still processing; the orchestrator discards a
// video rendered for a job that no longer exists. Deleting an unknown id
// succeeds.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load job: %w", err)
	}

	for _, path := range videoPaths(job.VideoPath, s.layout.OutputPath(id)) {
		if err := workspace.RemoveFile(path); err != nil {
			s.logger.Error("Failed to delete video", "job_id", id, "path", path, "error", err)
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	s.logger.Info("Job deleted", "job_id", id)
	return nil
}

func videoPaths(recorded, expected string) []string {
	if recorded == "" || recorded == expected {
		return []string{expected}
	}
	return []string{recorded, expected}
}

// Ping reports whether the job store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Counts returns the number of jobs per status.
func (s *Service) Counts(ctx context.Context) (map[store.JobStatus]int64, error) {
	return s.store.Count(ctx)
}
