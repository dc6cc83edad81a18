// Package handlers contains HTTP handlers for the shortforge API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"shortforge/internal/store"
	"shortforge/pkg/api"
)

// JobService is the job API the handlers drive.
type JobService interface {
	CreateJob(ctx context.Context, topic string, duration int) (*store.Job, error)
	GetJob(ctx context.Context, id string) (*store.Job, error)
	ListJobs(ctx context.Context) ([]*store.Job, error)
	DeleteJob(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// TokenIssuer issues bearer tokens on login.
type TokenIssuer interface {
	Issue() (string, error)
}

// Config holds handler settings.
type Config struct {
	AdminPassword string
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	service JobService
	issuer  TokenIssuer
	config  Config
	logger  *slog.Logger
}

// New creates a new Handlers instance.
func New(service JobService, issuer TokenIssuer, config Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, issuer: issuer, config: config, logger: logger}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// toJobResponse maps a store record onto its wire form.
func toJobResponse(job *store.Job) api.JobResponse {
	resp := api.JobResponse{
		ID:          job.ID,
		Topic:       job.Topic,
		Duration:    job.Duration,
		Status:      string(job.Status),
		Progress:    job.Progress,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
		VideoPath:   job.VideoPath,
		Error:       job.Error,
		Logs:        job.Logs,
		Metadata: api.JobMetadata{
			Script:       job.Metadata.Script,
			AudioPath:    job.Metadata.AudioPath,
			ImagePaths:   job.Metadata.ImagePaths,
			SubtitlePath: job.Metadata.SubtitlePath,
		},
	}
	if resp.Logs == nil {
		resp.Logs = []string{}
	}
	for _, s := range job.Metadata.Scenes {
		resp.Metadata.Scenes = append(resp.Metadata.Scenes, api.Scene{
			Index:       s.Index,
			Text:        s.Text,
			ImagePrompt: s.ImagePrompt,
			Duration:    s.Duration,
			ImagePath:   s.ImagePath,
		})
	}
	return resp
}
