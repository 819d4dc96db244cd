// Package status reports on past build sessions.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/rljarm/AIServer/internal/model"
)

type BuildStatus struct {
	Sessions []SessionStatus `json:"sessions,omitempty"`
}

type SessionStatus struct {
	ID          string `json:"id"`
	ProjectName string `json:"project_name"`
	Outcome     string `json:"outcome"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Detail      string `json:"detail,omitempty"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
}

// Run reads the persisted sessions and prints them, most recent first.
func Run(appDir string, jsonOutput bool) error {
	sessions, err := loadSessions(filepath.Join(appDir, "sessions"))
	if err != nil {
		return err
	}

	status := BuildStatus{Sessions: sessions}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	printStatus(status)
	return nil
}

func loadSessions(dir string) ([]SessionStatus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var sessions []SessionStatus
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var s model.BuildSession
		if err := yamlv3.Unmarshal(data, &s); err != nil {
			// Unparseable session files are skipped, not fatal.
			continue
		}
		sessions = append(sessions, SessionStatus{
			ID:          s.ID,
			ProjectName: s.ProjectName,
			Outcome:     string(s.Outcome),
			Attempts:    len(s.Attempts),
			MaxAttempts: s.MaxAttempts,
			Detail:      s.Detail,
			StartedAt:   s.StartedAt,
			FinishedAt:  s.FinishedAt,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt > sessions[j].StartedAt
	})
	return sessions, nil
}

func printStatus(status BuildStatus) {
	if len(status.Sessions) == 0 {
		fmt.Println("No build sessions found.")
		return
	}

	fmt.Printf("%-24s %-16s %-16s %-10s %s\n", "SESSION", "PROJECT", "OUTCOME", "ATTEMPTS", "STARTED")
	for _, s := range status.Sessions {
		attempts := fmt.Sprintf("%d/%d", s.Attempts, s.MaxAttempts)
		fmt.Printf("%-24s %-16s %-16s %-10s %s\n", s.ID, s.ProjectName, s.Outcome, attempts, s.StartedAt)
		if s.Detail != "" {
			fmt.Printf("  %s\n", s.Detail)
		}
	}
}
