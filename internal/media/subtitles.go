// Package media builds subtitle tracks and assembles the final video.
package media

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"shortforge/internal/store"
)

// MaxCueChars is the longest line a subtitle cue may carry.
const MaxCueChars = 40

// SubtitleFile is the name of the subtitle track inside a job directory.
const SubtitleFile = "subtitles.srt"

// Cue is one numbered subtitle entry. Times are in seconds from the start of
// the video.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// WrapText greedily packs words into lines of at most width runes. Words
// longer than width are split.
func WrapText(text string, width int) []string {
	var lines []string
	var current []rune

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > width {
			if len(current) > 0 {
				lines = append(lines, string(current))
				current = current[:0]
			}
			lines = append(lines, string(w[:width]))
			w = w[width:]
		}
		if len(w) == 0 {
			continue
		}

		switch {
		case len(current) == 0:
			current = append(current, w...)
		case len(current)+1+len(w) > width:
			lines = append(lines, string(current))
			current = append(current[:0], w...)
		default:
			current = append(current, ' ')
			current = append(current, w...)
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}

// BuildCues turns scenes into subtitle cues. Each scene's duration is split
// evenly across its wrapped lines, scenes follow each other back to back,
// and cues are numbered from 1 across the whole track.
func BuildCues(scenes []store.Scene) []Cue {
	var cues []Cue
	base := 0.0

	for _, scene := range scenes {
		chunks := WrapText(scene.Text, MaxCueChars)
		n := float64(len(chunks))

		for i, chunk := range chunks {
			start := base + scene.Duration*float64(i)/n
			end := base + scene.Duration*float64(i+1)/n
			if i == len(chunks)-1 {
				end = base + scene.Duration
			}
			cues = append(cues, Cue{
				Index: len(cues) + 1,
				Start: start,
				End:   end,
				Text:  chunk,
			})
		}

		base += scene.Duration
	}
	return cues
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))

	h := ms / 3_600_000
	ms %= 3_600_000
	m := ms / 60_000
	ms %= 60_000
	s := ms / 1000
	ms %= 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// WriteSRT writes cues in SubRip format.
func WriteSRT(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for _, c := range cues {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			c.Index, FormatTimestamp(c.Start), FormatTimestamp(c.End), c.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSubtitles builds the cue track for scenes and writes it to
// dir/subtitles.srt, returning the file path.
func WriteSubtitles(dir string, scenes []store.Scene) (string, error) {
	path := filepath.Join(dir, SubtitleFile)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create subtitle file: %w", err)
	}

	if err := WriteSRT(f, BuildCues(scenes)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write subtitles: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write subtitles: %w", err)
	}
	return path, nil
}
