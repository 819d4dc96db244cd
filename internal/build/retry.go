package build

import (
	"context"
	"log"
	"time"

	"github.com/rljarm/AIServer/internal/model"
)

// State is the retry controller's explicit state value. The loop is a
// bounded state machine rather than recursion so attempt history stays
// inspectable and the terminal condition lives in one place.
type State int

const (
	StateRunning State = iota
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Tester runs the test stage for one attempt and returns its verdict.
type Tester interface {
	RunTests(ctx context.Context, attempt int) model.StageVerdict
}

// Fixer attempts one repair. Collaborator failures are downgraded inside
// the fixer; AttemptFix never needs to be treated as fatal.
type Fixer interface {
	AttemptFix(ctx context.Context) model.FixReport
}

// RetryController drives the test-then-maybe-repair loop across a bounded
// number of attempts.
type RetryController struct {
	maxAttempts int
	cooldown    time.Duration
	tester      Tester
	fixer       Fixer
	logger      *log.Logger
	logLevel    LogLevel
}

func NewRetryController(cfg model.RetryConfig, tester Tester, fixer Fixer, logger *log.Logger, logLevel LogLevel) *RetryController {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryController{
		maxAttempts: maxAttempts,
		cooldown:    time.Duration(cfg.CooldownSec) * time.Second,
		tester:      tester,
		fixer:       fixer,
		logger:      logger,
		logLevel:    logLevel,
	}
}

// Run executes attempts until the tests pass or maxAttempts is exhausted,
// appending one Attempt record per cycle to the session. No repair is
// attempted on the final attempt: there is no retest left to benefit from
// it. A repair that reports failure still consumes the attempt and the
// loop retests, since the collaborator may have made partial unreported
// progress.
func (c *RetryController) Run(ctx context.Context, session *model.BuildSession) State {
	session.MaxAttempts = c.maxAttempts

	state := StateRunning
	for attempt := 1; state == StateRunning; attempt++ {
		c.log(LogLevelInfo, "test_attempt attempt=%d max=%d", attempt, c.maxAttempts)

		verdict := c.tester.RunTests(ctx, attempt)
		session.Attempts = append(session.Attempts, model.Attempt{
			Number:  attempt,
			Verdict: verdict,
		})
		record := session.LastAttempt()

		switch {
		case verdict.OverallSuccess():
			state = StateSucceeded
		case attempt == c.maxAttempts:
			state = StateExhausted
		default:
			report := c.fixer.AttemptFix(ctx)
			record.RepairAttempted = true
			record.RepairSucceeded = report.Applied
			record.FilesChanged = report.FilesChanged
			c.log(LogLevelInfo, "repair_done attempt=%d applied=%v files_changed=%d",
				attempt, report.Applied, len(report.FilesChanged))
			c.pause(ctx)
		}
	}

	c.log(LogLevelInfo, "retry_finished state=%s attempts=%d", state, len(session.Attempts))
	return state
}

func (c *RetryController) pause(ctx context.Context) {
	if c.cooldown <= 0 {
		return
	}
	select {
	case <-time.After(c.cooldown):
	case <-ctx.Done():
	}
}

func (c *RetryController) log(level LogLevel, format string, args ...interface{}) {
	if c.logger == nil || level < c.logLevel {
		return
	}
	c.logger.Printf(levelPrefix(level)+format, args...)
}
