package worker

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"shortforge/internal/media"
	"shortforge/internal/store"
)

type fakeScript struct {
	text string
	err  error
}

func (f *fakeScript) GenerateScript(ctx context.Context, topic string, durationSeconds int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeVoice struct {
	mu   sync.Mutex
	text string
}

func (f *fakeVoice) Synthesize(ctx context.Context, text, dest string) (string, error) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
	return dest, os.WriteFile(dest, []byte("MP3"), 0o644)
}

// fakeImage writes a placeholder for each prompt and fails the call whose
// 1-based number is failOn.
type fakeImage struct {
	mu     sync.Mutex
	calls  int
	failOn int
	err    error
}

func (f *fakeImage) GenerateImage(ctx context.Context, prompt, dest string) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n == f.failOn {
		return "", f.err
	}
	return dest, os.WriteFile(dest, []byte("PNG"), 0o644)
}

// fakeAssembler reports the plan's checkpoints and writes the output file.
type fakeAssembler struct {
	err     error
	request media.Request
	// sawSubtitles records whether the subtitle track existed at render time.
	sawSubtitles bool
	// beforeOutput and afterOutput run around writing the output file.
	beforeOutput func()
	afterOutput  func()
}

func (f *fakeAssembler) Run(ctx context.Context, req media.Request) error {
	f.request = req
	if _, err := os.Stat(req.SubtitlePath); err == nil {
		f.sawSubtitles = true
	}
	for _, s := range req.Scenes {
		if s.ImagePath == "" {
			return &media.PipelineFailure{Stage: media.StageClips, Err: media.ErrMissingImage}
		}
	}

	plan := *req.Plan
	n := len(req.Scenes)
	for i := range req.Scenes {
		req.Progress.Report(plan.ClipsFrom + (plan.ClipsTo-plan.ClipsFrom)*(i+1)/n)
	}
	req.Progress.Report(plan.Concat)
	if f.err != nil {
		return f.err
	}
	req.Progress.Report(plan.Mux)
	req.Progress.Report(plan.Burn)
	if f.beforeOutput != nil {
		f.beforeOutput()
	}
	if err := os.WriteFile(req.OutputPath, []byte("MP4"), 0o644); err != nil {
		return err
	}
	if f.afterOutput != nil {
		f.afterOutput()
	}
	return nil
}

// recordingStore captures the job state after every update.
type recordingStore struct {
	store.JobStore

	mu       sync.Mutex
	progress []int
	statuses []store.JobStatus
}

func (r *recordingStore) Update(ctx context.Context, id string, u store.JobUpdate) error {
	if err := r.JobStore.Update(ctx, id, u); err != nil {
		return err
	}
	job, err := r.JobStore.Get(ctx, id)
	if err != nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, job.Progress)
	if len(r.statuses) == 0 || r.statuses[len(r.statuses)-1] != job.Status {
		r.statuses = append(r.statuses, job.Status)
	}
	return nil
}

func (r *recordingStore) snapshot() ([]int, []store.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progress...), append([]store.JobStatus(nil), r.statuses...)
}

// fakeSubmitter records submitted ids.
type fakeSubmitter struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeSubmitter) Submit(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, jobID)
	return nil
}

var errContentPolicy = errors.New("image rejected by content policy")

const threeSceneScript = "SCENE 1: Lava pours from the crater.\nSCENE 2: Ash clouds darken the sky.\nSCENE 3: New land cools into rock."

func hasLog(logs []string, text string) bool {
	for _, l := range logs {
		if strings.HasSuffix(l, "] "+text) {
			return true
		}
	}
	return false
}
