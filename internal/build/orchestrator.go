// Package build implements the automated build pipeline: requirement
// extraction, retrieval-index search, scaffolding, code generation, lint,
// the bounded test-and-fix retry loop, and conditional deployment. One
// Orchestrator owns one BuildSession from start to terminal outcome.
package build

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/rljarm/AIServer/internal/llm"
	"github.com/rljarm/AIServer/internal/lock"
	"github.com/rljarm/AIServer/internal/model"
	"github.com/rljarm/AIServer/internal/notify"
	atomicyaml "github.com/rljarm/AIServer/internal/yaml"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func parseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func levelPrefix(level LogLevel) string {
	switch level {
	case LogLevelDebug:
		return "[DEBUG] "
	case LogLevelWarn:
		return "[WARN] "
	case LogLevelError:
		return "[ERROR] "
	default:
		return "[INFO] "
	}
}

// firstLine trims command output to its first line for log messages; full
// output stays in the session record.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Index is the slice of the retrieval index the pipeline consumes.
type Index interface {
	Add(ctx context.Context, docs []string) error
	Query(ctx context.Context, text string, topK int) ([]string, error)
}

// Orchestrator drives one build at a time through the full pipeline. Builds
// for the same project name are serialized through lockMap; distinct
// projects may build concurrently from separate goroutines.
type Orchestrator struct {
	appDir   string
	workDir  string
	config   *model.Config
	client   llm.Client
	index    Index
	notifier notify.Notifier
	runner   CommandRunner
	lockMap  *lock.MutexMap
	logger   *log.Logger
	logLevel LogLevel
}

func New(appDir, workDir string, cfg *model.Config, client llm.Client, idx Index, notifier notify.Notifier, logger *log.Logger) *Orchestrator {
	cfg.ApplyDefaults()
	return &Orchestrator{
		appDir:   appDir,
		workDir:  workDir,
		config:   cfg,
		client:   client,
		index:    idx,
		notifier: notifier,
		runner:   ExecRunner{},
		lockMap:  lock.NewMutexMap(),
		logger:   logger,
		logLevel: parseLogLevel(cfg.Logging.Level),
	}
}

// BuildApp runs the full pipeline for one user query. The returned session
// is always non-nil once created and carries the terminal outcome; the
// error is non-nil only for infrastructure failures (model unreachable,
// filesystem errors), never for ordinary pipeline outcomes like failing
// lint or exhausted test attempts.
func (o *Orchestrator) BuildApp(ctx context.Context, userQuery string) (*model.BuildSession, error) {
	id, err := model.GenerateID(model.IDTypeSession)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	session := &model.BuildSession{
		SchemaVersion: model.CurrentSchemaVersion,
		FileType:      model.FileTypeSession,
		ID:            id,
		Query:         userQuery,
		Outcome:       model.OutcomeRunning,
		StartedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	o.log(LogLevelInfo, "build_started session=%s", id)

	o.notify(ctx, "Gathering requirements...")
	requirements, err := o.client.ExtractRequirements(ctx, userQuery)
	if err != nil {
		o.finish(session, model.OutcomeError, fmt.Sprintf("requirement extraction: %v", err))
		return session, fmt.Errorf("extract requirements: %w", err)
	}
	session.Requirements = requirements
	session.ProjectName = llm.AppName(requirements)

	// One build per project name at a time in this process.
	key := "project:" + session.ProjectName
	o.lockMap.Lock(key)
	defer o.lockMap.Unlock(key)

	o.notify(ctx, "Performing external searches...")
	o.search(ctx, session)
	o.notify(ctx, "Search completed and indexed.")

	o.notify(ctx, "Creating project structure...")
	scaffolder := NewScaffolder(o.workDir, o.logger, o.logLevel)
	projectDir, err := scaffolder.CreateStructure(session.ProjectName, o.config.Targets)
	if err != nil {
		o.finish(session, model.OutcomeError, fmt.Sprintf("scaffold: %v", err))
		return session, fmt.Errorf("scaffold project: %w", err)
	}
	o.notify(ctx, "Project structure created.")

	o.notify(ctx, "Generating application code...")
	if err := scaffolder.GenerateCode(ctx, o.client, projectDir, o.config.Targets, requirements); err != nil {
		o.finish(session, model.OutcomeError, fmt.Sprintf("code generation: %v", err))
		return session, fmt.Errorf("generate code: %w", err)
	}
	o.notify(ctx, "Code generation complete.")

	stager := NewStageRunner(o.runner, projectDir, o.config.Stage, o.logger, o.logLevel)

	o.notify(ctx, "Running linters...")
	lint := stager.Run(ctx, "lint", o.config.Targets, LintCommand)
	if !lint.OverallSuccess() {
		o.notify(ctx, "Linting failed. Build aborted.")
		o.finish(session, model.OutcomeLintFailed,
			fmt.Sprintf("lint failed for: %s", strings.Join(lint.FailedTargets(), ", ")))
		return session, nil
	}
	o.notify(ctx, "Linting completed.")

	fixer := NewFixHandler(o.client, session.ProjectName, projectDir, o.logger, o.logLevel)
	controller := NewRetryController(o.config.Retry, &stageTester{o: o, stager: stager}, &notifyingFixer{o: o, fixer: fixer}, o.logger, o.logLevel)

	if controller.Run(ctx, session) == StateExhausted {
		o.notify(ctx, "Max attempts reached. Build failed.")
		last := session.LastAttempt()
		o.finish(session, model.OutcomeTestsExhausted,
			fmt.Sprintf("tests still failing for %s after %d attempts",
				strings.Join(last.Verdict.FailedTargets(), ", "), len(session.Attempts)))
		return session, nil
	}

	o.notify(ctx, "Deploying application...")
	deploy := stager.Deploy(ctx, o.config.Targets)
	if !deploy.OverallSuccess() {
		o.notify(ctx, "Deployment failed.")
		o.finish(session, model.OutcomeDeployFailed,
			fmt.Sprintf("deploy failed for: %s", strings.Join(deploy.FailedTargets(), ", ")))
		return session, nil
	}

	o.notify(ctx, "App deployed successfully!")
	o.finish(session, model.OutcomeDeployed, "")
	return session, nil
}

// search queries the retrieval index per extracted feature and then feeds
// the queries back into the index. Both halves are best effort: a broken
// index degrades the build, it never stops it.
func (o *Orchestrator) search(ctx context.Context, session *model.BuildSession) {
	framework := llm.FrontendFramework(session.Requirements)

	var queries []string
	for _, feature := range llm.Features(session.Requirements) {
		queries = append(queries, fmt.Sprintf("Best practices for implementing %s in %s", feature, framework))
	}
	if len(queries) == 0 {
		return
	}

	session.SearchResults = make(map[string][]string, len(queries))
	for _, q := range queries {
		results, err := o.index.Query(ctx, q, o.config.Index.TopK)
		if err != nil {
			o.log(LogLevelWarn, "index_query_failed query=%q err=%v", q, err)
			continue
		}
		session.SearchResults[q] = results
	}

	if err := o.index.Add(ctx, queries); err != nil {
		o.log(LogLevelWarn, "index_add_failed err=%v", err)
	}
}

// finish records the terminal outcome and persists the session file. A
// persistence failure is logged but never surfaces: the build's result is
// already decided.
func (o *Orchestrator) finish(session *model.BuildSession, outcome model.Outcome, detail string) {
	if err := model.ValidateOutcomeTransition(session.Outcome, outcome); err != nil {
		o.log(LogLevelError, "outcome_transition_rejected session=%s err=%v", session.ID, err)
		return
	}
	session.Outcome = outcome
	session.Detail = detail
	session.FinishedAt = time.Now().UTC().Format(time.RFC3339)

	path := filepath.Join(o.appDir, "sessions", session.ID+".yaml")
	if err := atomicyaml.AtomicWrite(path, session); err != nil {
		o.log(LogLevelError, "session_persist_failed session=%s err=%v", session.ID, err)
	}
	o.log(LogLevelInfo, "build_finished session=%s outcome=%s attempts=%d",
		session.ID, outcome, len(session.Attempts))
}

func (o *Orchestrator) notify(ctx context.Context, message string) {
	if err := o.notifier.Notify(ctx, message); err != nil {
		o.log(LogLevelWarn, "notify_failed err=%v", err)
	}
}

func (o *Orchestrator) log(level LogLevel, format string, args ...interface{}) {
	if o.logger == nil || level < o.logLevel {
		return
	}
	o.logger.Printf(levelPrefix(level)+format, args...)
}

// stageTester adapts the stage runner to the retry loop's Tester and sends
// the per-attempt progress notifications.
type stageTester struct {
	o      *Orchestrator
	stager *StageRunner
}

func (t *stageTester) RunTests(ctx context.Context, attempt int) model.StageVerdict {
	t.o.notify(ctx, fmt.Sprintf("Running tests (attempt %d of %d)...", attempt, t.o.config.Retry.MaxAttempts))
	verdict := t.stager.Run(ctx, "test", t.o.config.Targets, TestCommand)
	if verdict.OverallSuccess() {
		t.o.notify(ctx, "All tests passed successfully!")
	} else {
		t.o.notify(ctx, "Some tests failed.")
	}
	return verdict
}

// notifyingFixer wraps the fix handler with repair progress notifications.
type notifyingFixer struct {
	o     *Orchestrator
	fixer *FixHandler
}

func (f *notifyingFixer) AttemptFix(ctx context.Context) model.FixReport {
	f.o.notify(ctx, "Attempting to fix errors...")
	report := f.fixer.AttemptFix(ctx)
	if report.Applied {
		f.o.notify(ctx, "Errors fixed, re-testing...")
	} else {
		f.o.notify(ctx, "No fixes applied.")
	}
	return report
}
