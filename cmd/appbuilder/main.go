package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rljarm/AIServer/internal/build"
	"github.com/rljarm/AIServer/internal/index"
	"github.com/rljarm/AIServer/internal/llm"
	"github.com/rljarm/AIServer/internal/model"
	"github.com/rljarm/AIServer/internal/notify"
	"github.com/rljarm/AIServer/internal/setup"
	"github.com/rljarm/AIServer/internal/status"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "setup":
		runSetup(os.Args[2:])
	case "build":
		runBuild(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "version":
		fmt.Printf("appbuilder %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runSetup(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: appbuilder setup <project_dir> [project_name]")
		os.Exit(1)
	}
	name := ""
	if len(args) > 1 {
		name = args[1]
	}
	if err := setup.Run(args[0], name); err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(1)
	}
	absDir, _ := filepath.Abs(args[0])
	fmt.Printf("Initialized .appbuilder/ in %s\n", absDir)
}

func runBuild(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: appbuilder build <query...>")
		os.Exit(1)
	}
	query := joinArgs(args)

	appDir := findAppDir()
	if appDir == "" {
		fmt.Fprintln(os.Stderr, "error: .appbuilder/ directory not found. Run 'appbuilder setup <dir>' first.")
		os.Exit(1)
	}

	cfg, err := loadConfig(appDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog := newBuildLogger(appDir)
	defer closeLog()

	client, err := llm.NewOpenAIClient(cfg.Model, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "model client: %v\n", err)
		os.Exit(1)
	}

	workDir := cfg.Project.Root
	if workDir == "" {
		workDir = filepath.Dir(appDir)
	}

	store := index.NewStore(appDir, client, logger)
	notifier := notify.NewFromConfig(cfg.Notify)

	o := build.New(appDir, workDir, &cfg, client, store, notifier, logger)
	session, err := o.BuildApp(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(session.Outcome.Describe())
	if session.Detail != "" {
		fmt.Println(session.Detail)
	}
	if session.Outcome != model.OutcomeDeployed {
		os.Exit(1)
	}
}

func runStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: appbuilder status [--json]\n", a)
			os.Exit(1)
		}
	}

	appDir := findAppDir()
	if appDir == "" {
		fmt.Fprintln(os.Stderr, "error: .appbuilder/ directory not found. Run 'appbuilder setup <dir>' first.")
		os.Exit(1)
	}

	if err := status.Run(appDir, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
}

// newBuildLogger tees build logs to stderr and .appbuilder/logs/build.log.
// A log file failure degrades to stderr-only logging.
func newBuildLogger(appDir string) (*log.Logger, func()) {
	path := filepath.Join(appDir, "logs", "build.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v; logging to stderr only\n", path, err)
		return log.New(os.Stderr, "", log.LstdFlags), func() {}
	}
	return log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags), func() { _ = f.Close() }
}

func joinArgs(args []string) string {
	query := args[0]
	for _, a := range args[1:] {
		query += " " + a
	}
	return query
}

// findAppDir walks up from the working directory looking for .appbuilder/.
func findAppDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".appbuilder")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func loadConfig(appDir string) (model.Config, error) {
	data, err := os.ReadFile(filepath.Join(appDir, "config.yaml"))
	if err != nil {
		return model.Config{}, fmt.Errorf("read config.yaml: %w", err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("parse config.yaml: %w", err)
	}
	return cfg, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `appbuilder %s — Automated app build pipeline

Usage: appbuilder <command> [options]

Commands:
  setup <dir> [name]   Initialize .appbuilder/ directory
  build <query...>     Build, test, and deploy an app from a description
  status [--json]      Show past build sessions
  version              Print version
  help                 Show this help

The build command gathers requirements from the query, scaffolds the
project, generates code, lints it, runs tests with bounded fix-and-retry,
and deploys when tests pass.
`, version)
}
