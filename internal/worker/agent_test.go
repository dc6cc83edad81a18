package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shortforge/internal/store"
	"shortforge/internal/store/memory"
)

// MockProcessor implements Processor for testing.
type MockProcessor struct {
	ProcessFunc func(ctx context.Context, jobID string) error

	mu        sync.Mutex
	processed []string
}

func (m *MockProcessor) Process(ctx context.Context, jobID string) error {
	m.mu.Lock()
	m.processed = append(m.processed, jobID)
	m.mu.Unlock()
	if m.ProcessFunc != nil {
		return m.ProcessFunc(ctx, jobID)
	}
	return nil
}

func (m *MockProcessor) Processed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.processed...)
}

func seedJob(t *testing.T, js store.JobStore, id string) {
	t.Helper()
	if err := js.Create(context.Background(), &store.Job{ID: id, Topic: "t", Duration: 10, Status: store.JobStatusPending, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func waitDone(t *testing.T, a *Agent, ctx context.Context) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- a.Shutdown(ctx) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown timeout")
		return nil
	}
}

// Test: NewAgent() Function
func TestNewAgent_Defaults(t *testing.T) {
	agent := NewAgent(&MockProcessor{}, memory.New(), AgentConfig{Concurrency: -5}, nil)

	if agent.config.Concurrency != 4 {
		t.Errorf("expected default concurrency=4, got %d", agent.config.Concurrency)
	}
	if agent.config.JobTimeout != 30*time.Minute {
		t.Errorf("expected default job timeout=30m, got %v", agent.config.JobTimeout)
	}
	if agent.config.DrainTimeout != 2*time.Minute {
		t.Errorf("expected default drain timeout=2m, got %v", agent.config.DrainTimeout)
	}
	if cap(agent.sem) != 4 {
		t.Errorf("expected 4 slots, got %d", cap(agent.sem))
	}
}

func TestNewAgent_DoneChannelInitialized(t *testing.T) {
	agent := NewAgent(&MockProcessor{}, memory.New(), AgentConfig{}, nil)

	select {
	case <-agent.Done():
		t.Error("done channel should not be closed initially")
	default:
	}
}

func TestSubmit_ProcessesInBackground(t *testing.T) {
	release := make(chan struct{})
	proc := &MockProcessor{
		ProcessFunc: func(ctx context.Context, jobID string) error {
			<-release
			return nil
		},
	}
	agent := NewAgent(proc, memory.New(), AgentConfig{Concurrency: 1}, nil)

	start := time.Now()
	if err := agent.Submit("job-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Submit should not wait for the job")
	}

	close(release)
	waitDone(t, agent, context.Background())

	if got := proc.Processed(); len(got) != 1 || got[0] != "job-1" {
		t.Errorf("expected job-1 processed, got %v", got)
	}
}

func TestSubmit_ConcurrencyLimit(t *testing.T) {
	var running, maxRunning int32
	proc := &MockProcessor{
		ProcessFunc: func(ctx context.Context, jobID string) error {
			cur := atomic.AddInt32(&running, 1)
			for {
				prev := atomic.LoadInt32(&maxRunning)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxRunning, prev, cur) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		},
	}

	concurrencyLimit := 3
	agent := NewAgent(proc, memory.New(), AgentConfig{Concurrency: concurrencyLimit}, nil)
	for i := 0; i < 10; i++ {
		agent.Submit("job")
	}

	// Let every queued job drain before shutting down.
	deadline := time.Now().Add(2 * time.Second)
	for len(proc.Processed()) < 10 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	waitDone(t, agent, context.Background())

	if len(proc.Processed()) != 10 {
		t.Errorf("expected 10 jobs processed, got %d", len(proc.Processed()))
	}
	if int(maxRunning) > concurrencyLimit {
		t.Errorf("max concurrent jobs=%d exceeded limit=%d", maxRunning, concurrencyLimit)
	}
}

func TestShutdown_DrainsInFlight(t *testing.T) {
	var completed int32
	started := make(chan struct{})
	proc := &MockProcessor{
		ProcessFunc: func(ctx context.Context, jobID string) error {
			close(started)
			time.Sleep(100 * time.Millisecond)
			atomic.StoreInt32(&completed, 1)
			return nil
		},
	}
	agent := NewAgent(proc, memory.New(), AgentConfig{Concurrency: 1}, nil)
	agent.Submit("job-1")
	<-started

	if err := waitDone(t, agent, context.Background()); err != nil {
		t.Errorf("expected clean drain, got %v", err)
	}
	if atomic.LoadInt32(&completed) != 1 {
		t.Error("Shutdown returned before in-flight job completed")
	}
	select {
	case <-agent.Done():
	default:
		t.Error("Done() channel was not closed after shutdown")
	}
}

func TestShutdown_FailsWaitingJobs(t *testing.T) {
	js := memory.New()
	seedJob(t, js, "running")
	seedJob(t, js, "waiting")

	started := make(chan struct{})
	release := make(chan struct{})
	proc := &MockProcessor{
		ProcessFunc: func(ctx context.Context, jobID string) error {
			close(started)
			<-release
			return nil
		},
	}
	agent := NewAgent(proc, js, AgentConfig{Concurrency: 1}, nil)
	agent.Submit("running")
	<-started
	agent.Submit("waiting")

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	waitDone(t, agent, context.Background())

	job, _ := js.Get(context.Background(), "waiting")
	if job.Status != store.JobStatusFailed || job.Error != ErrShuttingDown.Error() {
		t.Errorf("expected waiting job failed with shutdown error, got %s %q", job.Status, job.Error)
	}
	if got := proc.Processed(); len(got) != 1 {
		t.Errorf("waiting job must not run, processed %v", got)
	}
}

func TestShutdown_CancelsAfterDrainTimeout(t *testing.T) {
	proc := &MockProcessor{
		ProcessFunc: func(ctx context.Context, jobID string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	agent := NewAgent(proc, memory.New(), AgentConfig{Concurrency: 1, DrainTimeout: 50 * time.Millisecond}, nil)
	agent.Submit("stuck")
	time.Sleep(20 * time.Millisecond)

	err := waitDone(t, agent, context.Background())
	if err == nil {
		t.Error("expected drain timeout error")
	}
}

func TestSubmit_AfterShutdown(t *testing.T) {
	agent := NewAgent(&MockProcessor{}, memory.New(), AgentConfig{}, nil)
	waitDone(t, agent, context.Background())

	if err := agent.Submit("late"); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("expected ErrShuttingDown, got %v", err)
	}
}

func TestRun_PanicMarksJobFailed(t *testing.T) {
	js := memory.New()
	seedJob(t, js, "boom")

	proc := &MockProcessor{
		ProcessFunc: func(ctx context.Context, jobID string) error {
			panic("nil scene list")
		},
	}
	agent := NewAgent(proc, js, AgentConfig{}, nil)
	agent.Submit("boom")
	waitDone(t, agent, context.Background())

	job, _ := js.Get(context.Background(), "boom")
	if job.Status != store.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Error != "internal error: nil scene list" {
		t.Errorf("unexpected error: %q", job.Error)
	}
}

func TestRun_JobTimeout(t *testing.T) {
	var deadlineHit int32
	proc := &MockProcessor{
		ProcessFunc: func(ctx context.Context, jobID string) error {
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				atomic.StoreInt32(&deadlineHit, 1)
			}
			return ctx.Err()
		},
	}
	agent := NewAgent(proc, memory.New(), AgentConfig{JobTimeout: 20 * time.Millisecond}, nil)
	agent.Submit("slow")

	time.Sleep(100 * time.Millisecond)
	waitDone(t, agent, context.Background())

	if atomic.LoadInt32(&deadlineHit) != 1 {
		t.Error("expected job context to hit its deadline")
	}
}
