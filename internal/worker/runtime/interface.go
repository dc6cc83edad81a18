// Package runtime runs the encoding tool as a local process or in a container.
package runtime

import (
	"context"
	"io"
)

// Runtime starts encoding tool invocations.
type Runtime interface {
	// Start launches Command and returns a handle to it.
	Start(ctx context.Context, opts StartOptions) (Handle, error)
}

// StartOptions describes one tool invocation.
type StartOptions struct {
	// Command is the argv; Command[0] is the tool.
	Command []string
	Env     map[string]string
	// WorkDir is the working directory of the process. Created if missing.
	WorkDir string
	// Mounts are host directories the tool reads or writes. Container
	// runtimes expose them at the same path.
	Mounts []string
}

// ExitResult is the outcome of a finished invocation.
type ExitResult struct {
	ExitCode int
	Error    error
}

// Handle represents a running invocation.
type Handle interface {
	// Wait blocks until the invocation exits.
	Wait(ctx context.Context) (ExitResult, error)

	// Stop terminates the invocation if it is still running and releases
	// its resources.
	Stop(ctx context.Context) error

	// StreamLogs returns the combined stdout/stderr. Callers must drain it
	// while waiting.
	StreamLogs(ctx context.Context) (io.ReadCloser, error)
}
