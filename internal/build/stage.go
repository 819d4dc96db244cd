package build

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rljarm/AIServer/internal/model"
	"github.com/rljarm/AIServer/internal/runner"
)

// CommandRunner abstracts external tool execution so stages are testable
// with fakes.
type CommandRunner interface {
	Run(ctx context.Context, command []string, dir string, timeout time.Duration) model.CommandResult
}

// ExecRunner runs commands as real child processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, command []string, dir string, timeout time.Duration) model.CommandResult {
	return runner.Run(ctx, command, dir, timeout)
}

// Selector picks the stage-specific command from a target.
type Selector func(model.Target) []string

func LintCommand(t model.Target) []string   { return t.LintCommand }
func TestCommand(t model.Target) []string   { return t.TestCommand }
func DeployCommand(t model.Target) []string { return t.DeployCommand }

// StageRunner executes one command per target inside a generated project
// tree and aggregates the results into a StageVerdict.
type StageRunner struct {
	runner      CommandRunner
	projectDir  string
	parallelism int
	timeout     time.Duration
	logger      *log.Logger
	logLevel    LogLevel
}

func NewStageRunner(r CommandRunner, projectDir string, cfg model.StageConfig, logger *log.Logger, logLevel LogLevel) *StageRunner {
	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = model.DefaultParallelism
	}
	timeoutSec := cfg.CommandTimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = model.DefaultCommandTimeout
	}
	return &StageRunner{
		runner:      r,
		projectDir:  projectDir,
		parallelism: parallelism,
		timeout:     time.Duration(timeoutSec) * time.Second,
		logger:      logger,
		logLevel:    logLevel,
	}
}

// Run executes sel(target) for every target. Targets are independent: one
// failure never prevents the others from running, so diagnostics cover the
// full target set. Dispatch may be concurrent (parallelism > 1) but results
// are aggregated and logged in target order for reproducible output.
func (s *StageRunner) Run(ctx context.Context, stage string, targets []model.Target, sel Selector) model.StageVerdict {
	results := make([]model.CommandResult, len(targets))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = s.runner.Run(ctx, sel(t), s.targetDir(t), s.timeout)
			return nil
		})
	}
	// Runner failures are captured in results; the group never errors.
	_ = g.Wait()

	verdict := model.NewStageVerdict(stage)
	for i, t := range targets {
		verdict.Record(t.Name, results[i])
		if results[i].Succeeded() {
			s.log(LogLevelInfo, "stage_target_ok stage=%s target=%s", stage, t.Name)
		} else {
			s.log(LogLevelError, "stage_target_failed stage=%s target=%s exit=%d stderr=%s",
				stage, t.Name, results[i].ExitCode, firstLine(results[i].Stderr))
		}
	}

	s.log(LogLevelInfo, "stage_done stage=%s success=%v", stage, verdict.OverallSuccess())
	return verdict
}

func (s *StageRunner) targetDir(t model.Target) string {
	if t.Dir == "" {
		return s.projectDir
	}
	return filepath.Join(s.projectDir, t.Dir)
}

func (s *StageRunner) log(level LogLevel, format string, args ...interface{}) {
	if s.logger == nil || level < s.logLevel {
		return
	}
	s.logger.Printf(levelPrefix(level)+format, args...)
}
