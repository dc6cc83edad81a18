package providers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"shortforge/internal/logger"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var fallbackCodes = map[string]bool{
	"billing_hard_limit_reached": true,
	"quota_exceeded":             true,
	"insufficient_quota":         true,
}

// FallbackEligible decides whether a primary image provider failure may be
// retried once on the secondary provider. It only inspects err.
func FallbackEligible(err error) bool {
	if err == nil {
		return false
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, context.Canceled) {
		return false
	}

	status, codes := classify(err)
	for _, c := range codes {
		if fallbackCodes[c] {
			return true
		}
	}
	if status == 400 || status == 429 || status >= 500 {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "billing") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "limit")
}

// classify extracts the HTTP status and structured error codes, if any.
func classify(err error) (int, []string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		codes := []string{apiErr.Type}
		if c, ok := apiErr.Code.(string); ok {
			codes = append(codes, c)
		}
		return apiErr.HTTPStatusCode, codes
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, nil
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode, []string{provErr.Code}
	}

	return 0, nil
}

// FallbackError reports that both image providers failed.
type FallbackError struct {
	Primary   error
	Secondary error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("both image providers failed: primary: %v; fallback: %v", e.Primary, e.Secondary)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Primary, e.Secondary}
}

// FallbackImage tries Primary and, when the gate allows it, Secondary.
type FallbackImage struct {
	primary   ImageProvider
	secondary ImageProvider
	logger    *slog.Logger
	fallbacks metric.Int64Counter
}

// NewFallbackImage composes two image providers. secondary may be nil.
func NewFallbackImage(primary, secondary ImageProvider, logger *slog.Logger) *FallbackImage {
	if logger == nil {
		logger = slog.Default()
	}

	counter, err := otel.Meter("shortforge/providers").Int64Counter("shortforge.image.fallbacks",
		metric.WithDescription("Image requests retried on the fallback provider"),
	)
	if err != nil {
		logger.Warn("failed to register fallback counter", "error", err)
	}

	return &FallbackImage{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
		fallbacks: counter,
	}
}

func (f *FallbackImage) GenerateImage(ctx context.Context, prompt, dest string) (string, error) {
	path, err := f.primary.GenerateImage(ctx, prompt, dest)
	if err == nil {
		return path, nil
	}

	if f.secondary == nil || !FallbackEligible(err) {
		return "", err
	}

	logger.FromContext(ctx, f.logger).Warn("Primary image provider failed, using fallback", "error", err, "dest", dest)
	if f.fallbacks != nil {
		f.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", fallbackReason(err))))
	}

	path, secondErr := f.secondary.GenerateImage(ctx, prompt, dest)
	if secondErr != nil {
		return "", &FallbackError{Primary: err, Secondary: secondErr}
	}
	return path, nil
}

func fallbackReason(err error) string {
	status, _ := classify(err)
	switch {
	case status == 429:
		return "rate_limit"
	case status >= 500:
		return "server_error"
	case status == 400:
		return "bad_request"
	}
	return "quota"
}
