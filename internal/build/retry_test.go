package build

import (
	"context"
	"testing"

	"github.com/rljarm/AIServer/internal/model"
)

// scriptedTester returns one verdict per attempt; true means the attempt's
// tests pass.
type scriptedTester struct {
	outcomes []bool
	calls    int
}

func (s *scriptedTester) RunTests(ctx context.Context, attempt int) model.StageVerdict {
	s.calls++
	v := model.NewStageVerdict("test")
	ok := false
	if attempt-1 < len(s.outcomes) {
		ok = s.outcomes[attempt-1]
	}
	if ok {
		v.Record("backend", model.CommandResult{ExitCode: 0})
	} else {
		v.Record("backend", model.CommandResult{ExitCode: 1, Stderr: "FAILED tests/test_app.py"})
	}
	return v
}

type countingFixer struct {
	calls   int
	applied bool
}

func (c *countingFixer) AttemptFix(ctx context.Context) model.FixReport {
	c.calls++
	return model.FixReport{Applied: c.applied, FilesChanged: []string{"backend/app.py"}}
}

func runRetry(t *testing.T, maxAttempts int, outcomes []bool, applied bool) (*model.BuildSession, State, *scriptedTester, *countingFixer) {
	t.Helper()
	tester := &scriptedTester{outcomes: outcomes}
	fixer := &countingFixer{applied: applied}
	c := NewRetryController(model.RetryConfig{MaxAttempts: maxAttempts}, tester, fixer, nil, LogLevelError)
	session := &model.BuildSession{}
	state := c.Run(context.Background(), session)
	return session, state, tester, fixer
}

func TestRetryController_PassFirstAttempt(t *testing.T) {
	session, state, tester, fixer := runRetry(t, 5, []bool{true}, true)

	if state != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", state)
	}
	if tester.calls != 1 {
		t.Errorf("expected 1 test run, got %d", tester.calls)
	}
	if fixer.calls != 0 {
		t.Errorf("expected no repair, got %d", fixer.calls)
	}
	if len(session.Attempts) != 1 || session.Attempts[0].RepairAttempted {
		t.Errorf("unexpected attempt history: %+v", session.Attempts)
	}
	if !session.TestsPassed() {
		t.Error("session should report passing tests")
	}
}

func TestRetryController_FixThenPass(t *testing.T) {
	session, state, tester, fixer := runRetry(t, 5, []bool{false, true}, true)

	if state != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", state)
	}
	if tester.calls != 2 {
		t.Errorf("expected 2 test runs, got %d", tester.calls)
	}
	if fixer.calls != 1 {
		t.Errorf("expected 1 repair, got %d", fixer.calls)
	}

	first := session.Attempts[0]
	if !first.RepairAttempted || !first.RepairSucceeded {
		t.Errorf("first attempt should record a successful repair: %+v", first)
	}
	if len(first.FilesChanged) != 1 || first.FilesChanged[0] != "backend/app.py" {
		t.Errorf("expected changed files on repair attempt, got %v", first.FilesChanged)
	}
	if session.Attempts[1].RepairAttempted {
		t.Error("passing attempt must not record a repair")
	}
}

func TestRetryController_Exhausted(t *testing.T) {
	session, state, tester, fixer := runRetry(t, 3, []bool{false, false, false}, true)

	if state != StateExhausted {
		t.Fatalf("expected exhausted, got %s", state)
	}
	if tester.calls != 3 {
		t.Errorf("expected 3 test runs, got %d", tester.calls)
	}
	// No repair after the final failing attempt.
	if fixer.calls != 2 {
		t.Errorf("expected 2 repairs, got %d", fixer.calls)
	}
	last := session.LastAttempt()
	if last.RepairAttempted {
		t.Error("final attempt must not attempt a repair")
	}
	if session.MaxAttempts != 3 || len(session.Attempts) != 3 {
		t.Errorf("attempt bookkeeping wrong: max=%d len=%d", session.MaxAttempts, len(session.Attempts))
	}
}

func TestRetryController_FailedRepairStillRetests(t *testing.T) {
	session, state, tester, fixer := runRetry(t, 3, []bool{false, true}, false)

	if state != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", state)
	}
	if tester.calls != 2 || fixer.calls != 1 {
		t.Errorf("expected retest after failed repair: tests=%d fixes=%d", tester.calls, fixer.calls)
	}
	first := session.Attempts[0]
	if !first.RepairAttempted || first.RepairSucceeded {
		t.Errorf("failed repair should be recorded as attempted but not succeeded: %+v", first)
	}
}

func TestRetryController_SingleAttemptNeverRepairs(t *testing.T) {
	_, state, tester, fixer := runRetry(t, 1, []bool{false}, true)

	if state != StateExhausted {
		t.Fatalf("expected exhausted, got %s", state)
	}
	if tester.calls != 1 || fixer.calls != 0 {
		t.Errorf("max_attempts=1 must mean one test and zero repairs: tests=%d fixes=%d", tester.calls, fixer.calls)
	}
}

func TestRetryController_ClampsMaxAttempts(t *testing.T) {
	_, state, tester, _ := runRetry(t, 0, []bool{false}, true)

	if state != StateExhausted {
		t.Fatalf("expected exhausted, got %s", state)
	}
	if tester.calls != 1 {
		t.Errorf("max_attempts<1 should clamp to a single attempt, got %d", tester.calls)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateRunning, "running"},
		{StateSucceeded, "succeeded"},
		{StateExhausted, "exhausted"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
