// Package setup handles appbuilder project initialization.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/rljarm/AIServer/internal/model"
	atomicyaml "github.com/rljarm/AIServer/internal/yaml"
	"github.com/rljarm/AIServer/templates"
)

const appDir = ".appbuilder"

// Run initializes the .appbuilder/ directory structure in the given project
// directory. projectName overrides the auto-detected name (defaults to the
// directory basename if empty).
func Run(projectDir, projectName string) error {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}

	base := filepath.Join(absDir, appDir)

	if _, err := os.Stat(base); err == nil {
		return fmt.Errorf("%s already exists", base)
	}

	dirs := []string{
		"sessions",
		"index",
		"locks",
		"logs",
		"quarantine",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(base, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	cfg, err := generateConfig(absDir, projectName)
	if err != nil {
		return fmt.Errorf("generate config: %w", err)
	}
	if err := atomicyaml.AtomicWrite(filepath.Join(base, "config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}

	// Empty retrieval index with a valid schema header.
	storeContent := fmt.Sprintf("schema_version: 1\nfile_type: %q\ndocuments: []\n", model.FileTypeIndex)
	if err := atomicyaml.AtomicWriteRaw(filepath.Join(base, "index", "store.yaml"), []byte(storeContent)); err != nil {
		return fmt.Errorf("write index store: %w", err)
	}

	// Create index.lock (empty)
	if err := os.WriteFile(filepath.Join(base, "locks", "index.lock"), nil, 0600); err != nil {
		return fmt.Errorf("create index.lock: %w", err)
	}

	return nil
}

func generateConfig(projectDir, projectName string) (*model.Config, error) {
	data, err := fs.ReadFile(templates.FS, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("read config template: %w", err)
	}

	var cfg model.Config
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config template: %w", err)
	}

	if projectName != "" {
		cfg.Project.Name = projectName
	} else {
		cfg.Project.Name = filepath.Base(projectDir)
	}
	cfg.Project.Root = projectDir
	cfg.Project.Created = time.Now().Format(time.RFC3339)
	cfg.ApplyDefaults()

	return &cfg, nil
}
