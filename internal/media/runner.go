package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external binary and returns its stdout. Implementations
// must honor the timeout and surface a diagnostic from stderr on failure.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run executes bin with args, bounded by timeout.
func (ExecRunner) Run(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timed out after %s", bin, timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", bin, err, stderrTail(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// stderrTail keeps the last few lines of stderr, which is where ffmpeg and
// the extractor put the actual cause.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(no diagnostic output)"
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}
