package model

// LaunchFailureExitCode is the sentinel exit code recorded when an external
// tool could not be started at all (binary missing, permission denied).
const LaunchFailureExitCode = -1

// CommandResult is the captured outcome of one external tool invocation.
// Launch failures and timeouts are folded into the result rather than
// surfaced as errors; the exit code is the single source of truth.
type CommandResult struct {
	Command  []string `yaml:"command,flow"`
	ExitCode int      `yaml:"exit_code"`
	Stdout   string   `yaml:"stdout,omitempty"`
	Stderr   string   `yaml:"stderr,omitempty"`
}

func (r CommandResult) Succeeded() bool {
	return r.ExitCode == 0
}

// StageVerdict aggregates per-target command results for one pipeline stage.
// Order preserves the sequence targets were processed in, which is also the
// order diagnostics and notifications are emitted.
type StageVerdict struct {
	Stage   string                   `yaml:"stage"`
	Order   []string                 `yaml:"order,flow"`
	Results map[string]CommandResult `yaml:"results"`
}

func NewStageVerdict(stage string) StageVerdict {
	return StageVerdict{
		Stage:   stage,
		Results: make(map[string]CommandResult),
	}
}

// Record appends one target's result, keeping Order and Results in sync.
func (v *StageVerdict) Record(target string, result CommandResult) {
	if v.Results == nil {
		v.Results = make(map[string]CommandResult)
	}
	v.Order = append(v.Order, target)
	v.Results[target] = result
}

// OverallSuccess is the AND over every recorded target result.
func (v StageVerdict) OverallSuccess() bool {
	for _, name := range v.Order {
		if !v.Results[name].Succeeded() {
			return false
		}
	}
	return true
}

// FailedTargets returns the names of failed targets in processing order.
func (v StageVerdict) FailedTargets() []string {
	var failed []string
	for _, name := range v.Order {
		if !v.Results[name].Succeeded() {
			failed = append(failed, name)
		}
	}
	return failed
}

// FixReport is the outcome of one repair attempt. Applied reflects only what
// the model collaborator claims; FilesChanged is what was actually observed
// on disk while the repair ran, when observation was possible.
type FixReport struct {
	Applied      bool     `yaml:"applied"`
	FilesChanged []string `yaml:"files_changed,omitempty"`
	Error        string   `yaml:"error,omitempty"`
}
