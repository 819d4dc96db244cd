package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewBuildLogger_WritesToLogFile(t *testing.T) {
	appDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(appDir, "logs"), 0755); err != nil {
		t.Fatal(err)
	}

	logger, closeLog := newBuildLogger(appDir)
	logger.Printf("[INFO] build_started session=%s", "ses_1700000000_deadbeef")
	closeLog()

	data, err := os.ReadFile(filepath.Join(appDir, "logs", "build.log"))
	if err != nil {
		t.Fatalf("build.log not written: %v", err)
	}
	if !strings.Contains(string(data), "build_started session=ses_1700000000_deadbeef") {
		t.Errorf("log line missing from build.log: %q", string(data))
	}
}

func TestNewBuildLogger_AppendsAcrossBuilds(t *testing.T) {
	appDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(appDir, "logs"), 0755); err != nil {
		t.Fatal(err)
	}

	logger, closeLog := newBuildLogger(appDir)
	logger.Print("first build")
	closeLog()

	logger, closeLog = newBuildLogger(appDir)
	logger.Print("second build")
	closeLog()

	data, err := os.ReadFile(filepath.Join(appDir, "logs", "build.log"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "first build") || !strings.Contains(content, "second build") {
		t.Errorf("expected both builds' lines, got %q", content)
	}
}

func TestNewBuildLogger_MissingLogsDirFallsBack(t *testing.T) {
	logger, closeLog := newBuildLogger(filepath.Join(t.TempDir(), "absent"))
	defer closeLog()
	if logger == nil {
		t.Fatal("expected a usable logger even without a logs directory")
	}
}

func TestJoinArgs(t *testing.T) {
	if got := joinArgs([]string{"Build", "me", "a", "task", "app"}); got != "Build me a task app" {
		t.Errorf("joinArgs = %q", got)
	}
	if got := joinArgs([]string{"single"}); got != "single" {
		t.Errorf("joinArgs = %q", got)
	}
}
