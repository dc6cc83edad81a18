package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	scriptSystemPrompt = "You are an expert YouTube Shorts scriptwriter who creates viral, engaging short-form content."
	scriptTemperature  = 0.8
	scriptMaxTokens    = 500
)

// NewOpenAIClient builds a client shared by the script and image providers.
// baseURL and httpClient are optional.
func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

// OpenAIScript generates scripts with the chat completions API.
type OpenAIScript struct {
	client *openai.Client
	model  string
}

func NewOpenAIScript(client *openai.Client) *OpenAIScript {
	return &OpenAIScript{client: client, model: openai.GPT4oMini}
}

func (s *OpenAIScript) GenerateScript(ctx context.Context, topic string, durationSeconds int) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scriptSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: scriptPrompt(topic, durationSeconds)},
		},
		Temperature: scriptTemperature,
		MaxTokens:   scriptMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrScriptGeneration, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty response", ErrScriptGeneration)
	}
	return resp.Choices[0].Message.Content, nil
}

func scriptPrompt(topic string, durationSeconds int) string {
	return fmt.Sprintf(`Create a viral YouTube Shorts script about "%s".

Requirements:
- Duration: %d seconds
- Include a STRONG hook in the first 3 seconds that grabs attention
- Split into 4-5 distinct scenes
- Each scene should be engaging and visual
- Use simple, conversational language
- End with a call-to-action or thought-provoking statement

Format your response as:
SCENE 1: [text for scene 1]
SCENE 2: [text for scene 2]
...

Make it viral-worthy!`, topic, durationSeconds)
}

// OpenAIImage generates vertical images with DALL-E 3 and downloads them.
type OpenAIImage struct {
	client     *openai.Client
	httpClient *http.Client
}

func NewOpenAIImage(client *openai.Client, httpClient *http.Client) *OpenAIImage {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIImage{client: client, httpClient: httpClient}
}

func (p *OpenAIImage) GenerateImage(ctx context.Context, prompt, dest string) (string, error) {
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Model:          openai.CreateImageModelDallE3,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1792,
		Quality:        openai.CreateImageQualityStandard,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("openai image: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("%w: no image URL in openai response", ErrImageGeneration)
	}

	if err := download(ctx, p.httpClient, "openai", resp.Data[0].URL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// download streams url into dest.
func download(ctx context.Context, client *http.Client, provider, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: image download failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Message: "image download failed"}
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
