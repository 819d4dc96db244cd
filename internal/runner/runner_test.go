package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rljarm/AIServer/internal/model"
)

func TestRun_Success(t *testing.T) {
	res := Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"}, t.TempDir(), 0)

	if !res.Succeeded() {
		t.Fatalf("expected success, got exit code %d stderr=%q", res.ExitCode, res.Stderr)
	}
	if !strings.Contains(res.Stdout, "out") {
		t.Errorf("stdout not captured: %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "err") {
		t.Errorf("stderr not captured: %q", res.Stderr)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	res := Run(context.Background(), []string{"sh", "-c", "echo broken >&2; exit 3"}, t.TempDir(), 0)

	if res.Succeeded() {
		t.Fatal("expected failure")
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "broken") {
		t.Errorf("expected diagnostic text in stderr, got %q", res.Stderr)
	}
}

// Scenario: the executable does not exist. The launch failure must be
// folded into the result, not raised past the runner boundary.
func TestRun_LaunchFailure(t *testing.T) {
	res := Run(context.Background(), []string{"definitely-not-a-real-binary-4471"}, t.TempDir(), 0)

	if res.Succeeded() {
		t.Fatal("expected failure for missing executable")
	}
	if res.ExitCode != model.LaunchFailureExitCode {
		t.Errorf("expected sentinel exit code %d, got %d", model.LaunchFailureExitCode, res.ExitCode)
	}
	if res.Stderr == "" {
		t.Error("expected launch error text in stderr")
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	res := Run(context.Background(), nil, t.TempDir(), 0)

	if res.Succeeded() {
		t.Fatal("expected failure for empty command")
	}
	if res.Stderr != "empty command" {
		t.Errorf("unexpected stderr: %q", res.Stderr)
	}
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	res := Run(context.Background(), []string{"sleep", "30"}, t.TempDir(), 100*time.Millisecond)

	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout was not enforced")
	}
	if res.Succeeded() {
		t.Fatal("expected failure after timeout")
	}
	if !strings.Contains(res.Stderr, "timed out") {
		t.Errorf("expected timeout indicator in stderr, got %q", res.Stderr)
	}
}

func TestRun_MissingWorkingDirectory(t *testing.T) {
	res := Run(context.Background(), []string{"true"}, "/nonexistent/dir/4471", 0)

	if res.Succeeded() {
		t.Fatal("expected failure for missing working directory")
	}
	if res.ExitCode != model.LaunchFailureExitCode {
		t.Errorf("expected sentinel exit code, got %d", res.ExitCode)
	}
}
