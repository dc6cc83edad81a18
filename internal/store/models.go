// Package store contains the job state layer for shortforge.
package store

import (
	"time"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition may leave this status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Scene is one narrative/visual unit derived from the script.
type Scene struct {
	Index       int     `json:"index"`
	Text        string  `json:"text"`
	ImagePrompt string  `json:"image_prompt"`
	Duration    float64 `json:"duration"`
	ImagePath   string  `json:"image_path,omitempty"`
}

// Metadata accumulates the intermediate artifacts of a job.
type Metadata struct {
	Script       string   `json:"script,omitempty"`
	Scenes       []Scene  `json:"scenes,omitempty"`
	AudioPath    string   `json:"audio_path,omitempty"`
	ImagePaths   []string `json:"image_paths,omitempty"`
	SubtitlePath string   `json:"subtitle_path,omitempty"`
}

// Job is the unit of work and its externally visible state.
type Job struct {
	ID          string
	Topic       string
	Duration    int
	Status      JobStatus
	Progress    int
	CreatedAt   time.Time
	CompletedAt *time.Time
	VideoPath   string
	Error       string
	Logs        []string
	Metadata    Metadata
}

// Clone returns a deep copy so callers never share slices with the store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	c.Logs = append([]string(nil), j.Logs...)
	c.Metadata.Scenes = append([]Scene(nil), j.Metadata.Scenes...)
	c.Metadata.ImagePaths = append([]string(nil), j.Metadata.ImagePaths...)
	return &c
}
