// Package model defines the data structures for the app builder's
// configuration, build sessions, and stage results.
package model

type Config struct {
	Project ProjectConfig `yaml:"project"`
	Model   ModelConfig   `yaml:"model"`
	Targets []Target      `yaml:"targets"`
	Retry   RetryConfig   `yaml:"retry"`
	Stage   StageConfig   `yaml:"stage"`
	Index   IndexConfig   `yaml:"index"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Root        string `yaml:"root"`
	Created     string `yaml:"created"`
}

// ModelConfig describes the language-model collaborator. BaseURL points at
// any OpenAI-compatible endpoint, so a locally hosted model (llama.cpp,
// vLLM, Ollama) works the same as the hosted API.
type ModelConfig struct {
	Name           string  `yaml:"name"`
	BaseURL        string  `yaml:"base_url"`
	EmbeddingModel string  `yaml:"embedding_model"`
	Temperature    float32 `yaml:"temperature"`
}

// Target is one platform build artifact with its own tool commands.
// Targets are immutable once a build starts. Dir is relative to the
// generated project root; Entry is where generated code is written.
type Target struct {
	Name          string   `yaml:"name"`
	Dir           string   `yaml:"dir"`
	Language      string   `yaml:"language"`
	Entry         string   `yaml:"entry"`
	LintCommand   []string `yaml:"lint_command,flow"`
	TestCommand   []string `yaml:"test_command,flow"`
	DeployCommand []string `yaml:"deploy_command,flow"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	CooldownSec int `yaml:"cooldown_sec"`
}

type StageConfig struct {
	Parallelism       int `yaml:"parallelism"`
	CommandTimeoutSec int `yaml:"command_timeout_sec"`
}

type IndexConfig struct {
	TopK int `yaml:"top_k"`
}

// NotifyConfig holds SMS credentials. Empty fields fall back to the
// TWILIO_* environment variables; if neither is set, notifications are a
// silent no-op.
type NotifyConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	ToNumber   string `yaml:"to_number"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	DefaultMaxAttempts    = 5
	DefaultTopK           = 3
	DefaultParallelism    = 1
	DefaultCommandTimeout = 600 // seconds
)

// ApplyDefaults fills zero-valued tunables so a sparse config file still
// yields a runnable configuration.
func (c *Config) ApplyDefaults() {
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Stage.Parallelism < 1 {
		c.Stage.Parallelism = DefaultParallelism
	}
	if c.Stage.CommandTimeoutSec <= 0 {
		c.Stage.CommandTimeoutSec = DefaultCommandTimeout
	}
	if c.Index.TopK < 1 {
		c.Index.TopK = DefaultTopK
	}
	if len(c.Targets) == 0 {
		c.Targets = DefaultTargets()
	}
}

// DefaultTargets mirrors the stock three-platform app: a Flask backend, a
// React frontend, and a SwiftUI iOS app. The backend deploy chains
// docker-compose and terraform in one shell command because a target
// carries exactly one deploy command.
func DefaultTargets() []Target {
	return []Target{
		{
			Name:          "backend",
			Dir:           "backend",
			Language:      "Python",
			Entry:         "backend/app.py",
			LintCommand:   []string{"pylint", "app.py"},
			TestCommand:   []string{"pytest", "tests"},
			DeployCommand: []string{"sh", "-c", "docker-compose build && docker-compose push && terraform -chdir=../configs/terraform apply -auto-approve"},
		},
		{
			Name:          "frontend",
			Dir:           "frontend",
			Language:      "React",
			Entry:         "frontend/App.js",
			LintCommand:   []string{"eslint", "."},
			TestCommand:   []string{"npm", "test"},
			DeployCommand: []string{"vercel", "--prod"},
		},
		{
			Name:          "mobile",
			Dir:           "ios",
			Language:      "SwiftUI",
			Entry:         "ios/App.swift",
			LintCommand:   []string{"swiftlint"},
			TestCommand:   []string{"xcodebuild", "test"},
			DeployCommand: []string{"fastlane", "release"},
		},
	}
}
