package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	DefaultElevenLabsURL   = "https://api.elevenlabs.io"
	DefaultElevenLabsVoice = "EXAVITQu4vr4xnSDxMaL"
	elevenLabsModel        = "eleven_monolingual_v1"
)

// ElevenLabsVoice synthesizes narration with the ElevenLabs TTS API.
type ElevenLabsVoice struct {
	apiKey     string
	baseURL    string
	voiceID    string
	httpClient *http.Client
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type ttsErrorBody struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// NewElevenLabsVoice creates the voice provider. Empty baseURL and voiceID
// fall back to the public API and default voice.
func NewElevenLabsVoice(apiKey, baseURL, voiceID string) *ElevenLabsVoice {
	if baseURL == "" {
		baseURL = DefaultElevenLabsURL
	}
	if voiceID == "" {
		voiceID = DefaultElevenLabsVoice
	}
	return &ElevenLabsVoice{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		voiceID: voiceID,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (v *ElevenLabsVoice) Synthesize(ctx context.Context, text, dest string) (string, error) {
	if v.apiKey == "" {
		return "", fmt.Errorf("%w: %w: ELEVENLABS_API_KEY is not configured", ErrVoiceGeneration, ErrMissingCredential)
	}

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: elevenLabsModel,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVoiceGeneration, err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", v.baseURL, v.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVoiceGeneration, err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", v.apiKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVoiceGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		provErr := &ProviderError{Provider: "elevenlabs", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var parsed ttsErrorBody
		if json.Unmarshal(raw, &parsed) == nil && parsed.Detail.Message != "" {
			provErr.Code = parsed.Detail.Status
			provErr.Message = parsed.Detail.Message
		}
		return "", fmt.Errorf("%w: %w", ErrVoiceGeneration, provErr)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVoiceGeneration, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: %w", ErrVoiceGeneration, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrVoiceGeneration, err)
	}

	return dest, nil
}
