// Package workspace lays out per-job working directories and final outputs.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Layout places job working files under UploadsDir/<id> and final videos at
// OutputsDir/<id>.mp4.
type Layout struct {
	UploadsDir string
	OutputsDir string
}

// New returns a layout rooted at the given directories, made absolute so the
// paths stay valid for encoders running in another working directory.
func New(uploadsDir, outputsDir string) (Layout, error) {
	up, err := filepath.Abs(uploadsDir)
	if err != nil {
		return Layout{}, fmt.Errorf("invalid uploads dir: %w", err)
	}
	out, err := filepath.Abs(outputsDir)
	if err != nil {
		return Layout{}, fmt.Errorf("invalid outputs dir: %w", err)
	}
	return Layout{UploadsDir: up, OutputsDir: out}, nil
}

func (l Layout) JobDir(jobID string) string {
	return filepath.Join(l.UploadsDir, jobID)
}

func (l Layout) OutputPath(jobID string) string {
	return filepath.Join(l.OutputsDir, jobID+".mp4")
}

// Ensure creates the job directory and the outputs directory.
func (l Layout) Ensure(jobID string) error {
	if err := os.MkdirAll(l.JobDir(jobID), 0o755); err != nil {
		return fmt.Errorf("failed to create job dir: %w", err)
	}
	if err := os.MkdirAll(l.OutputsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create outputs dir: %w", err)
	}
	return nil
}

// Cleanup removes the job directory and everything in it. A missing
// directory is not an error.
func (l Layout) Cleanup(jobID string) error {
	return os.RemoveAll(l.JobDir(jobID))
}

// RemoveFile deletes path if it exists.
func RemoveFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
