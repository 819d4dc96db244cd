package model

import "fmt"

// Outcome is the terminal result of a build session.
type Outcome string

const (
	OutcomeRunning        Outcome = "running"
	OutcomeDeployed       Outcome = "deployed"
	OutcomeTestsExhausted Outcome = "tests_exhausted"
	OutcomeLintFailed     Outcome = "lint_failed"
	OutcomeDeployFailed   Outcome = "deploy_failed"
	OutcomeError          Outcome = "error"
)

var terminalOutcomes = map[Outcome]bool{
	OutcomeDeployed:       true,
	OutcomeTestsExhausted: true,
	OutcomeLintFailed:     true,
	OutcomeDeployFailed:   true,
	OutcomeError:          true,
}

// Sessions move running → exactly one terminal outcome.
var validOutcomeTransitions = map[Outcome]map[Outcome]bool{
	OutcomeRunning: {
		OutcomeDeployed:       true,
		OutcomeTestsExhausted: true,
		OutcomeLintFailed:     true,
		OutcomeDeployFailed:   true,
		OutcomeError:          true,
	},
}

func IsTerminalOutcome(o Outcome) bool {
	return terminalOutcomes[o]
}

func ValidateOutcomeTransition(from, to Outcome) error {
	if IsTerminalOutcome(from) {
		return fmt.Errorf("cannot transition from terminal outcome %q", from)
	}
	allowed, ok := validOutcomeTransitions[from]
	if !ok {
		return fmt.Errorf("unknown outcome %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid outcome transition: %q → %q", from, to)
	}
	return nil
}

// Describe renders the user-visible summary line for a terminal outcome.
func (o Outcome) Describe() string {
	switch o {
	case OutcomeDeployed:
		return "application built and deployed successfully"
	case OutcomeTestsExhausted:
		return "tests still failing after exhausting attempts"
	case OutcomeLintFailed:
		return "lint failed"
	case OutcomeDeployFailed:
		return "deployment failed"
	case OutcomeError:
		return "build failed"
	default:
		return string(o)
	}
}
