package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// ExecRuntime runs the tool as a local OS process.
type ExecRuntime struct{}

// ExecHandle wraps a started process. Its combined output is read from the
// parent end of an OS pipe, which reaches EOF when the process exits.
type ExecHandle struct {
	cmd    *exec.Cmd
	output *os.File

	mu      sync.Mutex
	claimed bool

	waitOnce sync.Once
	result   ExitResult
	waitErr  error
}

func NewExecRuntime() *ExecRuntime {
	return &ExecRuntime{}
}

// Start implements Runtime.Start using os/exec.
func (e *ExecRuntime) Start(ctx context.Context, opts StartOptions) (Handle, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("command is required")
	}

	if opts.WorkDir != "" {
		if err := os.MkdirAll(opts.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create work dir: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.WorkDir
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start %s: %w", opts.Command[0], err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	return &ExecHandle{cmd: cmd, output: pr}, nil
}

// Wait blocks until the process exits. A non-zero exit code is reported in
// the result, not as an error.
func (h *ExecHandle) Wait(ctx context.Context) (ExitResult, error) {
	h.mu.Lock()
	if !h.claimed {
		h.claimed = true
		go func() {
			io.Copy(io.Discard, h.output)
			h.output.Close()
		}()
	}
	h.mu.Unlock()

	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		if err == nil {
			h.result = ExitResult{ExitCode: 0}
			return
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			h.result = ExitResult{ExitCode: exitErr.ExitCode(), Error: err}
			if ctxErr := ctx.Err(); ctxErr != nil {
				h.waitErr = ctxErr
			}
			return
		}

		h.result = ExitResult{ExitCode: -1, Error: err}
		h.waitErr = err
	})

	return h.result, h.waitErr
}

// Stop kills the process if it is still running.
func (h *ExecHandle) Stop(ctx context.Context) error {
	if h.cmd.ProcessState != nil {
		return nil
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// StreamLogs returns the process output. Only the first caller gets the
// stream; output is discarded if Wait is called without it.
func (h *ExecHandle) StreamLogs(ctx context.Context) (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.claimed {
		return nil, fmt.Errorf("log stream already consumed")
	}
	h.claimed = true
	return h.output, nil
}
