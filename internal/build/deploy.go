package build

import (
	"context"

	"github.com/rljarm/AIServer/internal/model"
)

// deployOrder is the fixed deployment sequence. Unlike lint and test, named
// targets are reordered before deployment because of real cross-target
// dependencies: the backend must be reachable before the frontend and
// mobile app reference it. Targets outside this list deploy afterwards in
// their configured order.
var deployOrder = []string{"backend", "frontend", "mobile"}

// Deploy runs each target's deploy command sequentially in fixed order. The
// first failure aborts the remaining deployments; already-completed
// deployments are not rolled back. The verdict records only the targets
// actually attempted.
func (s *StageRunner) Deploy(ctx context.Context, targets []model.Target) model.StageVerdict {
	verdict := model.NewStageVerdict("deploy")

	for _, t := range orderForDeploy(targets) {
		res := s.runner.Run(ctx, t.DeployCommand, s.targetDir(t), s.timeout)
		verdict.Record(t.Name, res)
		if !res.Succeeded() {
			s.log(LogLevelError, "deploy_failed target=%s exit=%d stderr=%s",
				t.Name, res.ExitCode, firstLine(res.Stderr))
			break
		}
		s.log(LogLevelInfo, "deploy_target_ok target=%s", t.Name)
	}

	s.log(LogLevelInfo, "stage_done stage=deploy success=%v", verdict.OverallSuccess())
	return verdict
}

func orderForDeploy(targets []model.Target) []model.Target {
	byName := make(map[string]model.Target, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}

	ordered := make([]model.Target, 0, len(targets))
	seen := make(map[string]bool, len(targets))
	for _, name := range deployOrder {
		if t, ok := byName[name]; ok {
			ordered = append(ordered, t)
			seen[name] = true
		}
	}
	for _, t := range targets {
		if !seen[t.Name] {
			ordered = append(ordered, t)
		}
	}
	return ordered
}
