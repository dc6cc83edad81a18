// Package script turns generated narration text into timed scenes.
package script

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"shortforge/internal/store"
)

// ErrEmptyScript is returned when neither scene markers nor paragraphs
// yield any scene text.
var ErrEmptyScript = errors.New("empty script: no scenes found")

// MaxPromptText is the number of characters of scene text kept in an
// image prompt.
const MaxPromptText = 200

const promptTemplate = "Cinematic vertical shot (9:16), %s, professional photography, vibrant colors, no text, no words, high quality"

var (
	sceneMarker = regexp.MustCompile(`(?i)SCENE\s+\d+:\s*`)
	punctuation = regexp.MustCompile(`[^\w\s]`)
)

// Split divides text into scenes and gives each an equal share of
// totalSeconds. Explicit "SCENE n:" markers win; without any, blank-line
// separated paragraphs are used. Scene order follows the input, not the
// marker numbers.
func Split(text string, totalSeconds float64) ([]store.Scene, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	parts := splitOnMarkers(text)
	if len(parts) == 0 {
		parts = splitParagraphs(text)
	}
	if len(parts) == 0 {
		return nil, ErrEmptyScript
	}

	per := totalSeconds / float64(len(parts))
	scenes := make([]store.Scene, len(parts))
	for i, part := range parts {
		scenes[i] = store.Scene{
			Index:       i + 1,
			Text:        part,
			ImagePrompt: ImagePrompt(part),
			Duration:    per,
		}
	}
	return scenes, nil
}

// ImagePrompt derives a deterministic image-generation prompt from
// scene text.
func ImagePrompt(text string) string {
	clean := punctuation.ReplaceAllString(text, "")
	if r := []rune(clean); len(r) > MaxPromptText {
		clean = string(r[:MaxPromptText])
	}
	return fmt.Sprintf(promptTemplate, clean)
}

// splitOnMarkers returns the trimmed text following each marker up to the
// next marker or end of input. Markers with no text are skipped.
func splitOnMarkers(text string) []string {
	locs := sceneMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	var parts []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if part := strings.TrimSpace(text[loc[1]:end]); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func splitParagraphs(text string) []string {
	var parts []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
