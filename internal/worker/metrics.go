package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the job pipeline instruments.
type Metrics struct {
	jobsCreated   metric.Int64Counter
	jobsCompleted metric.Int64Counter
	jobsFailed    metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("shortforge/worker")

	created, err := meter.Int64Counter("shortforge.jobs.created",
		metric.WithDescription("Jobs accepted for processing"))
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs.created counter: %w", err)
	}
	completed, err := meter.Int64Counter("shortforge.jobs.completed",
		metric.WithDescription("Jobs that produced a video"))
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs.completed counter: %w", err)
	}
	failed, err := meter.Int64Counter("shortforge.jobs.failed",
		metric.WithDescription("Jobs that ended in failure"))
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs.failed counter: %w", err)
	}
	duration, err := meter.Float64Histogram("shortforge.stage.duration",
		metric.WithDescription("Time spent in each pipeline stage"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stage.duration histogram: %w", err)
	}

	return &Metrics{
		jobsCreated:   created,
		jobsCompleted: completed,
		jobsFailed:    failed,
		stageDuration: duration,
	}, nil
}

// The methods below accept a nil receiver so components can run without
// instruments in tests.

func (m *Metrics) created(ctx context.Context) {
	if m != nil {
		m.jobsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) completed(ctx context.Context) {
	if m != nil {
		m.jobsCompleted.Add(ctx, 1)
	}
}

func (m *Metrics) failed(ctx context.Context, stage string) {
	if m != nil {
		m.jobsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
}

func (m *Metrics) observeStage(ctx context.Context, stage string, started time.Time) {
	if m != nil {
		m.stageDuration.Record(ctx, time.Since(started).Seconds(),
			metric.WithAttributes(attribute.String("stage", stage)))
	}
}
