package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"shortforge/internal/store"
)

// Mock service
type mockService struct {
	jobs map[string]*store.Job

	createErr error
	getErr    error
	listErr   error
	deleteErr error
	pingErr   error

	// Spies (to verify arguments passed by handlers)
	capturedTopic    string
	capturedDuration int
	deletedID        string
}

func newMockService(jobs ...*store.Job) *mockService {
	m := &mockService{jobs: make(map[string]*store.Job)}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *mockService) CreateJob(ctx context.Context, topic string, duration int) (*store.Job, error) {
	m.capturedTopic = topic
	m.capturedDuration = duration
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &store.Job{
		ID:        "job-1",
		Topic:     topic,
		Duration:  duration,
		Status:    store.JobStatusPending,
		CreatedAt: time.Now().UTC(),
		Logs:      []string{"[2026-01-01T00:00:00Z] Job created for topic: " + topic},
	}, nil
}

func (m *mockService) GetJob(ctx context.Context, id string) (*store.Job, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (m *mockService) ListJobs(ctx context.Context) ([]*store.Job, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var jobs []*store.Job
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (m *mockService) DeleteJob(ctx context.Context, id string) error {
	m.deletedID = id
	return m.deleteErr
}

func (m *mockService) Ping(ctx context.Context) error {
	return m.pingErr
}

// Mock issuer
type mockIssuer struct {
	token string
	err   error
}

func (m *mockIssuer) Issue() (string, error) {
	return m.token, m.err
}

func newTestHandlers(svc JobService) *Handlers {
	return New(svc, &mockIssuer{token: "signed-token"}, Config{AdminPassword: "s3cret"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var errBoom = errors.New("boom")
