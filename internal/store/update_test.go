package store

import (
	"strings"
	"testing"
	"time"
)

func statusPtr(s JobStatus) *JobStatus { return &s }
func intPtr(i int) *int               { return &i }
func strPtr(s string) *string         { return &s }

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_ProgressNeverDecreases(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, Progress: 40}

	job.Apply(JobUpdate{Progress: intPtr(25)})
	if job.Progress != 40 {
		t.Errorf("expected progress to stay 40, got %d", job.Progress)
	}

	job.Apply(JobUpdate{Progress: intPtr(65)})
	if job.Progress != 65 {
		t.Errorf("expected progress 65, got %d", job.Progress)
	}

	job.Apply(JobUpdate{Progress: intPtr(250)})
	if job.Progress != 100 {
		t.Errorf("expected progress clamped to 100, got %d", job.Progress)
	}
}

func TestApply_TerminalFieldsFrozen(t *testing.T) {
	done := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &Job{Status: JobStatusProcessing, Progress: 90}

	job.Apply(JobUpdate{
		Status:      statusPtr(JobStatusCompleted),
		Progress:    intPtr(100),
		VideoPath:   strPtr("/out/a.mp4"),
		CompletedAt: &done,
	})

	if job.Status != JobStatusCompleted || job.VideoPath != "/out/a.mp4" || job.CompletedAt == nil {
		t.Fatalf("completion not applied: %+v", job)
	}

	later := done.Add(time.Hour)
	job.Apply(JobUpdate{
		Status:      statusPtr(JobStatusFailed),
		Error:       strPtr("late failure"),
		VideoPath:   strPtr("/out/b.mp4"),
		CompletedAt: &later,
	})

	if job.Status != JobStatusCompleted {
		t.Errorf("status changed after completion: %s", job.Status)
	}
	if job.Error != "" {
		t.Errorf("error set after completion: %q", job.Error)
	}
	if job.VideoPath != "/out/a.mp4" {
		t.Errorf("video path changed after completion: %s", job.VideoPath)
	}
	if !job.CompletedAt.Equal(done) {
		t.Errorf("completed_at changed after completion: %v", job.CompletedAt)
	}
}

func TestApply_ErrorOnlyOnFailure(t *testing.T) {
	job := &Job{Status: JobStatusProcessing}

	job.Apply(JobUpdate{Error: strPtr("not yet")})
	if job.Error != "" {
		t.Errorf("error must only be set on transition to failed, got %q", job.Error)
	}

	job.Apply(JobUpdate{Status: statusPtr(JobStatusFailed), Error: strPtr("boom"), Progress: intPtr(80)})
	if job.Error != "boom" {
		t.Errorf("expected error boom, got %q", job.Error)
	}
	if job.Progress != 0 {
		t.Errorf("expected progress frozen on failure, got %d", job.Progress)
	}
}

func TestApply_VideoPathIgnoredUnlessCompleted(t *testing.T) {
	job := &Job{Status: JobStatusProcessing}
	job.Apply(JobUpdate{VideoPath: strPtr("/out/x.mp4")})

	if job.VideoPath != "" {
		t.Errorf("expected video path to be ignored, got %s", job.VideoPath)
	}
}

func TestApply_MetadataMerges(t *testing.T) {
	job := &Job{Status: JobStatusProcessing}

	job.Apply(JobUpdate{Metadata: &Metadata{
		Script: "SCENE 1: a",
		Scenes: []Scene{{Index: 1, Text: "a"}},
	}})
	job.Apply(JobUpdate{Metadata: &Metadata{AudioPath: "/w/narration.mp3"}})
	job.Apply(JobUpdate{Metadata: &Metadata{ImagePaths: []string{"/w/scene_1.png", "/w/scene_2.png"}}})
	job.Apply(JobUpdate{Metadata: &Metadata{ImagePaths: []string{"/w/scene_1.png"}}})

	md := job.Metadata
	if md.Script != "SCENE 1: a" {
		t.Errorf("script erased: %q", md.Script)
	}
	if len(md.Scenes) != 1 {
		t.Errorf("scenes erased: %v", md.Scenes)
	}
	if md.AudioPath != "/w/narration.mp3" {
		t.Errorf("audio path not merged: %q", md.AudioPath)
	}
	if len(md.ImagePaths) != 2 {
		t.Errorf("expected image path list to keep 2 entries, got %v", md.ImagePaths)
	}
}

func TestClone_DoesNotShareSlices(t *testing.T) {
	job := &Job{
		Logs:     []string{"one"},
		Metadata: Metadata{ImagePaths: []string{"a"}, Scenes: []Scene{{Index: 1}}},
	}

	c := job.Clone()
	c.Logs[0] = "changed"
	c.Metadata.ImagePaths[0] = "changed"
	c.Metadata.Scenes[0].Index = 9

	if job.Logs[0] != "one" || job.Metadata.ImagePaths[0] != "a" || job.Metadata.Scenes[0].Index != 1 {
		t.Errorf("clone shares state with original: %+v", job)
	}
}

func TestFormatLogEntry(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 8_000_000, time.UTC)

	got := FormatLogEntry(at, "Script generated")
	if got != "[2025-03-04T05:06:07.008Z] Script generated" {
		t.Errorf("unexpected entry: %s", got)
	}
	if !strings.HasSuffix(got, "Script generated") {
		t.Errorf("text missing from entry: %s", got)
	}
}
