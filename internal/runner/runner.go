// Package runner executes external build tools and captures their outcome.
// It is stateless and safe for concurrent use; retry policy belongs to
// callers.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rljarm/AIServer/internal/model"
)

// Run launches command in dir, waits for completion, and captures stdout,
// stderr, and the exit status. A zero timeout means no deadline. Failures
// never cross this boundary as Go errors: launch failures and timeouts are
// recorded in the returned CommandResult with a non-zero exit code and the
// failure text appended to Stderr.
func Run(ctx context.Context, command []string, dir string, timeout time.Duration) model.CommandResult {
	res := model.CommandResult{Command: command}

	if len(command) == 0 {
		res.ExitCode = model.LaunchFailureExitCode
		res.Stderr = "empty command"
		return res
	}

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case err == nil:
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Launch failure: binary not found, permission denied,
			// bad working directory.
			res.ExitCode = model.LaunchFailureExitCode
			res.Stderr = appendDiagnostic(res.Stderr, err.Error())
		}
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		if res.ExitCode == 0 {
			res.ExitCode = model.LaunchFailureExitCode
		}
		res.Stderr = appendDiagnostic(res.Stderr, fmt.Sprintf("timed out after %s", timeout))
	}

	return res
}

func appendDiagnostic(stderr, text string) string {
	if stderr == "" {
		return text
	}
	return strings.TrimRight(stderr, "\n") + "\n" + text
}
