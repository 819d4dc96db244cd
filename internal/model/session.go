package model

// Attempt is one test-then-maybe-repair cycle inside the retry loop.
// Numbers are 1-based. RepairAttempted stays false on the final attempt
// even when tests fail, since there is no retest left to benefit from it.
type Attempt struct {
	Number          int          `yaml:"number"`
	Verdict         StageVerdict `yaml:"verdict"`
	RepairAttempted bool         `yaml:"repair_attempted"`
	RepairSucceeded bool         `yaml:"repair_succeeded"`
	FilesChanged    []string     `yaml:"files_changed,omitempty"`
}

// BuildSession is the mutable state of one build run, owned exclusively by
// the orchestrator from start to terminal outcome. It is persisted under
// sessions/ when the build finishes so `appbuilder status` can report on it.
type BuildSession struct {
	SchemaVersion int            `yaml:"schema_version"`
	FileType      string         `yaml:"file_type"`
	ID            string         `yaml:"id"`
	ProjectName   string         `yaml:"project_name"`
	Query         string         `yaml:"query"`
	Requirements  map[string]any `yaml:"requirements"`
	SearchResults map[string][]string `yaml:"search_results,omitempty"`
	MaxAttempts   int            `yaml:"max_attempts"`
	Attempts      []Attempt      `yaml:"attempts"`
	Outcome       Outcome        `yaml:"outcome"`
	Detail        string         `yaml:"detail,omitempty"`
	StartedAt     string         `yaml:"started_at"`
	FinishedAt    string         `yaml:"finished_at,omitempty"`
}

const (
	CurrentSchemaVersion = 1
	FileTypeSession      = "build_session"
	FileTypeIndex        = "retrieval_index"
)

// LastAttempt returns the most recent attempt record, or nil before the
// first test run.
func (s *BuildSession) LastAttempt() *Attempt {
	if len(s.Attempts) == 0 {
		return nil
	}
	return &s.Attempts[len(s.Attempts)-1]
}

// TestsPassed reports whether the final attempt's verdict succeeded.
// Deployment is gated on this.
func (s *BuildSession) TestsPassed() bool {
	last := s.LastAttempt()
	return last != nil && last.Verdict.OverallSuccess()
}
