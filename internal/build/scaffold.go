package build

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rljarm/AIServer/internal/model"
)

// CodeGenerator is the slice of the model collaborator code generation
// needs.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, language string, requirements map[string]any) (string, error)
}

// projectSubdirs are created alongside the per-target directories.
var projectSubdirs = []string{"tests", "docs", "configs"}

// Scaffolder creates the generated project's directory layout and writes
// model-generated code into each target's entry file.
type Scaffolder struct {
	workDir  string
	logger   *log.Logger
	logLevel LogLevel
}

func NewScaffolder(workDir string, logger *log.Logger, logLevel LogLevel) *Scaffolder {
	return &Scaffolder{workDir: workDir, logger: logger, logLevel: logLevel}
}

// CreateStructure creates the project root with one directory per target
// plus the shared subdirectories. Existing directories are left alone so a
// rebuild of the same project is safe.
func (s *Scaffolder) CreateStructure(projectName string, targets []model.Target) (string, error) {
	if projectName == "" {
		return "", fmt.Errorf("empty project name")
	}

	projectDir := filepath.Join(s.workDir, projectName)

	var dirs []string
	for _, t := range targets {
		if t.Dir != "" {
			dirs = append(dirs, t.Dir)
		}
	}
	dirs = append(dirs, projectSubdirs...)

	for _, d := range dirs {
		path := filepath.Join(projectDir, d)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create directory %s: %w", d, err)
		}
		s.log(LogLevelDebug, "scaffold_dir_created dir=%s", path)
	}

	s.log(LogLevelInfo, "scaffold_done project=%s dirs=%d", projectName, len(dirs))
	return projectDir, nil
}

// GenerateCode asks the model for each target's source and writes it to the
// target's entry file. Any generation failure aborts: later pipeline
// stages need every target populated.
func (s *Scaffolder) GenerateCode(ctx context.Context, gen CodeGenerator, projectDir string, targets []model.Target, requirements map[string]any) error {
	for _, t := range targets {
		if t.Entry == "" {
			continue
		}

		code, err := gen.GenerateCode(ctx, t.Language, requirements)
		if err != nil {
			return fmt.Errorf("generate %s code: %w", t.Name, err)
		}

		entry := filepath.Join(projectDir, t.Entry)
		if err := os.MkdirAll(filepath.Dir(entry), 0755); err != nil {
			return fmt.Errorf("create entry dir for %s: %w", t.Name, err)
		}
		if err := os.WriteFile(entry, []byte(code), 0644); err != nil {
			return fmt.Errorf("write %s entry: %w", t.Name, err)
		}

		s.log(LogLevelInfo, "code_generated target=%s language=%s entry=%s", t.Name, t.Language, t.Entry)
	}
	return nil
}

func (s *Scaffolder) log(level LogLevel, format string, args ...interface{}) {
	if s.logger == nil || level < s.logLevel {
		return
	}
	s.logger.Printf(levelPrefix(level)+format, args...)
}
