package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rljarm/AIServer/internal/model"
)

type fakeGenerator struct {
	err   error
	calls []string
}

func (f *fakeGenerator) GenerateCode(ctx context.Context, language string, requirements map[string]any) (string, error) {
	f.calls = append(f.calls, language)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("// %s code\n", language), nil
}

func TestScaffolder_CreateStructure(t *testing.T) {
	workDir := t.TempDir()
	s := NewScaffolder(workDir, nil, LogLevelError)

	projectDir, err := s.CreateStructure("MyApp", model.DefaultTargets())
	if err != nil {
		t.Fatalf("CreateStructure failed: %v", err)
	}
	if projectDir != filepath.Join(workDir, "MyApp") {
		t.Fatalf("unexpected project dir: %s", projectDir)
	}

	for _, d := range []string{"backend", "frontend", "ios", "tests", "docs", "configs"} {
		info, err := os.Stat(filepath.Join(projectDir, d))
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s: %v", d, err)
		}
	}
}

func TestScaffolder_CreateStructureIsIdempotent(t *testing.T) {
	workDir := t.TempDir()
	s := NewScaffolder(workDir, nil, LogLevelError)

	if _, err := s.CreateStructure("MyApp", model.DefaultTargets()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateStructure("MyApp", model.DefaultTargets()); err != nil {
		t.Fatalf("second scaffold of the same project must succeed: %v", err)
	}
}

func TestScaffolder_EmptyProjectName(t *testing.T) {
	s := NewScaffolder(t.TempDir(), nil, LogLevelError)
	if _, err := s.CreateStructure("", model.DefaultTargets()); err == nil {
		t.Fatal("expected error for empty project name")
	}
}

func TestScaffolder_GenerateCodeWritesEntries(t *testing.T) {
	workDir := t.TempDir()
	s := NewScaffolder(workDir, nil, LogLevelError)
	targets := model.DefaultTargets()

	projectDir, err := s.CreateStructure("MyApp", targets)
	if err != nil {
		t.Fatal(err)
	}

	gen := &fakeGenerator{}
	if err := s.GenerateCode(context.Background(), gen, projectDir, targets, map[string]any{"app_name": "MyApp"}); err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}

	if len(gen.calls) != 3 {
		t.Fatalf("expected one generation per target, got %v", gen.calls)
	}
	for _, entry := range []string{"backend/app.py", "frontend/App.js", "ios/App.swift"} {
		data, err := os.ReadFile(filepath.Join(projectDir, entry))
		if err != nil {
			t.Errorf("expected entry file %s: %v", entry, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("entry file %s is empty", entry)
		}
	}
}

func TestScaffolder_GenerateCodeAbortsOnError(t *testing.T) {
	workDir := t.TempDir()
	s := NewScaffolder(workDir, nil, LogLevelError)
	targets := model.DefaultTargets()

	projectDir, err := s.CreateStructure("MyApp", targets)
	if err != nil {
		t.Fatal(err)
	}

	gen := &fakeGenerator{err: errors.New("model unreachable")}
	if err := s.GenerateCode(context.Background(), gen, projectDir, targets, nil); err == nil {
		t.Fatal("expected generation error to propagate")
	}
	if len(gen.calls) != 1 {
		t.Errorf("expected generation to stop at the first failure, got %v", gen.calls)
	}
}
