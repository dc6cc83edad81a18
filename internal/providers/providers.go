// Package providers holds the external script, voice and image generation
// clients used by the job orchestrator.
package providers

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrScriptGeneration marks a failed or empty script response.
	ErrScriptGeneration = errors.New("script generation failed")

	// ErrVoiceGeneration marks a failed narration request.
	ErrVoiceGeneration = errors.New("voice generation failed")

	// ErrImageGeneration marks a failed image request.
	ErrImageGeneration = errors.New("image generation failed")

	// ErrMissingCredential is a configuration error raised before any
	// request is attempted.
	ErrMissingCredential = errors.New("missing provider credential")
)

// ScriptProvider generates narration text for a topic.
type ScriptProvider interface {
	GenerateScript(ctx context.Context, topic string, durationSeconds int) (string, error)
}

// VoiceProvider synthesizes narration audio and writes it to dest.
type VoiceProvider interface {
	Synthesize(ctx context.Context, text, dest string) (string, error)
}

// ImageProvider generates an image for prompt and writes it to dest.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt, dest string) (string, error)
}

// ProviderError is an HTTP-level failure reported by a provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}
