// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the server.
package api

import "time"

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
	Admin bool   `json:"admin"`
}

// VerifyResponse is returned by GET /api/auth/verify.
type VerifyResponse struct {
	Valid bool `json:"valid"`
	Admin bool `json:"admin"`
}

// CreateJobRequest is the request body for creating a new job.
type CreateJobRequest struct {
	Topic string `json:"topic"`
	// Duration is the target video length in seconds.
	Duration int `json:"duration"`
}

// Scene is one scene of a job's script.
type Scene struct {
	Index       int     `json:"index" yaml:"index"`
	Text        string  `json:"text" yaml:"text"`
	ImagePrompt string  `json:"image_prompt" yaml:"image_prompt"`
	Duration    float64 `json:"duration" yaml:"duration"`
	ImagePath   string  `json:"image_path,omitempty" yaml:"image_path,omitempty"`
}

// JobMetadata holds a job's intermediate artifacts.
type JobMetadata struct {
	Script       string   `json:"script,omitempty" yaml:"script,omitempty"`
	Scenes       []Scene  `json:"scenes,omitempty" yaml:"scenes,omitempty"`
	AudioPath    string   `json:"audio_path,omitempty" yaml:"audio_path,omitempty"`
	ImagePaths   []string `json:"image_paths,omitempty" yaml:"image_paths,omitempty"`
	SubtitlePath string   `json:"subtitle_path,omitempty" yaml:"subtitle_path,omitempty"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID          string      `json:"id" yaml:"id"`
	Topic       string      `json:"topic" yaml:"topic"`
	Duration    int         `json:"duration" yaml:"duration"`
	Status      string      `json:"status" yaml:"status"`
	Progress    int         `json:"progress" yaml:"progress"`
	CreatedAt   time.Time   `json:"created_at" yaml:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	VideoPath   string      `json:"video_path,omitempty" yaml:"video_path,omitempty"`
	Error       string      `json:"error,omitempty" yaml:"error,omitempty"`
	Logs        []string    `json:"logs" yaml:"logs"`
	Metadata    JobMetadata `json:"metadata" yaml:"metadata"`
}

// LogEntry is a single job log line with its 1-based sequence number.
type LogEntry struct {
	Seq     int    `json:"seq"`
	Content string `json:"content"`
}

// LogsResponse is the response body for fetching job logs.
type LogsResponse struct {
	Logs   []LogEntry `json:"logs"`
	Status string     `json:"status"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}
