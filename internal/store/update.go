package store

import (
	"time"
)

// LogTimeFormat is the timestamp layout used for job log entries.
const LogTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobUpdate is a partial update. Nil fields are left untouched.
type JobUpdate struct {
	Status      *JobStatus
	Progress    *int
	Error       *string
	VideoPath   *string
	CompletedAt *time.Time
	Metadata    *Metadata
}

// Apply merges u into j.
//
// Status, VideoPath, CompletedAt and Error are frozen once j is terminal.
// VideoPath and CompletedAt are only taken on the transition to completed,
// Error only on the transition to failed. Progress never decreases and is
// frozen once the job has failed.
func (j *Job) Apply(u JobUpdate) {
	wasTerminal := j.Status.IsTerminal()

	if !wasTerminal && u.Status != nil && u.Status.Valid() {
		j.Status = *u.Status
	}

	if !wasTerminal {
		switch j.Status {
		case JobStatusCompleted:
			if u.VideoPath != nil {
				j.VideoPath = *u.VideoPath
			}
			if u.CompletedAt != nil {
				t := *u.CompletedAt
				j.CompletedAt = &t
			}
		case JobStatusFailed:
			if u.Error != nil {
				j.Error = *u.Error
			}
		}
	}

	if u.Progress != nil && j.Status != JobStatusFailed {
		p := clampProgress(*u.Progress)
		if p > j.Progress {
			j.Progress = p
		}
	}

	if u.Metadata != nil {
		j.Metadata.merge(*u.Metadata)
	}
}

// merge copies every non-empty field of patch into m. A shorter image
// path list never replaces a longer one.
func (m *Metadata) merge(patch Metadata) {
	if patch.Script != "" {
		m.Script = patch.Script
	}
	if len(patch.Scenes) > 0 {
		m.Scenes = append([]Scene(nil), patch.Scenes...)
	}
	if patch.AudioPath != "" {
		m.AudioPath = patch.AudioPath
	}
	if len(patch.ImagePaths) > 0 && len(patch.ImagePaths) >= len(m.ImagePaths) {
		m.ImagePaths = append([]string(nil), patch.ImagePaths...)
	}
	if patch.SubtitlePath != "" {
		m.SubtitlePath = patch.SubtitlePath
	}
}

// FormatLogEntry prefixes text with a UTC timestamp.
func FormatLogEntry(at time.Time, text string) string {
	return "[" + at.UTC().Format(LogTimeFormat) + "] " + text
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
