package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const stderrTail = 2 << 10

// Runner executes one external converter. Tests replace it with a stub.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecError is a failed converter run with the tail of its stderr.
type ExecError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ExecError) Error() string {
	if errors.Is(e.Err, exec.ErrNotFound) {
		return e.Command + " is not installed or not on PATH"
	}
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error { return e.Err }

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()
	base := filepath.Base(name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		tail := lastBytes(strings.TrimSpace(stderr.String()), stderrTail)
		r.logger.Error("ocr.exec.failed", "cmd", base, "args", strings.Join(args, " "), "elapsed_ms", elapsed, "error", err, "stderr", tail)
		return stdout.Bytes(), stderr.Bytes(), &ExecError{Command: base, Stderr: tail, Err: err}
	}
	r.logger.Debug("ocr.exec.ok", "cmd", base, "elapsed_ms", elapsed, "stdout_bytes", stdout.Len())
	return stdout.Bytes(), stderr.Bytes(), nil
}

func lastBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
