package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiImageModel is used when no model is configured.
const DefaultGeminiImageModel = "gemini-2.5-flash-image"

// GeminiImage generates images with a Gemini image model. The image comes
// back inline in the response.
type GeminiImage struct {
	client *genai.Client
	model  string
}

// NewGeminiImage builds the fallback provider. An empty apiKey yields a
// provider that fails every call with ErrMissingCredential.
func NewGeminiImage(ctx context.Context, apiKey, model string) (*GeminiImage, error) {
	if model == "" {
		model = DefaultGeminiImageModel
	}
	if strings.TrimSpace(apiKey) == "" {
		return &GeminiImage{model: model}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiImage{client: client, model: model}, nil
}

func (g *GeminiImage) GenerateImage(ctx context.Context, prompt, dest string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: %w: GEMINI_API_KEY is not configured", ErrImageGeneration, ErrMissingCredential)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(geminiPrompt(prompt)), nil)
	if err != nil {
		return "", fmt.Errorf("gemini image: %w", err)
	}

	data, err := firstImage(resp, g.model)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func geminiPrompt(prompt string) string {
	return "Cinematic 9:16 vertical shot, " + prompt + ", professional photography, vibrant colors, no text, no words, story scene based, high quality, highly detailed"
}

// firstImage returns the first inline image part of the first candidate.
func firstImage(resp *genai.GenerateContentResponse, model string) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no candidates in gemini response", ErrImageGeneration)
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
		if text == "" && part.Text != "" {
			text = part.Text
		}
	}

	if text != "" {
		if r := []rune(text); len(r) > 100 {
			text = string(r[:100]) + "..."
		}
		return nil, fmt.Errorf("%w: model %s returned text instead of image: %q", ErrImageGeneration, model, text)
	}
	return nil, fmt.Errorf("%w: no image data in gemini response", ErrImageGeneration)
}
