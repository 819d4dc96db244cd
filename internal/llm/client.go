// Package llm wraps the language-model collaborator behind the three
// operations the build pipeline consumes: requirement extraction, code
// generation, and code repair, plus embeddings for the retrieval index.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Client is the language-model collaborator interface. Implementations are
// expected to be safe for concurrent use.
type Client interface {
	// ExtractRequirements turns a free-form user query into structured
	// requirements. Implementations fall back to DefaultRequirements when
	// the model's output cannot be parsed; a non-nil error means the
	// collaborator itself was unreachable.
	ExtractRequirements(ctx context.Context, query string) (map[string]any, error)

	// GenerateCode produces source text in the given language for the
	// requirements.
	GenerateCode(ctx context.Context, language string, requirements map[string]any) (string, error)

	// RepairCode asks the model to fix the named project's failing code.
	// The boolean is the collaborator's own claim that a fix was applied.
	RepairCode(ctx context.Context, projectName string) (bool, error)

	// Embed returns one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DefaultRequirements is the parse-error fallback structure.
func DefaultRequirements() map[string]any {
	return map[string]any{
		"app_name": "MyApp",
		"features": []any{"task_management"},
	}
}

// ParseRequirements decodes a model response as a JSON object, tolerating a
// surrounding markdown code fence. An empty object is treated as a parse
// failure since the pipeline needs at least an app name downstream.
func ParseRequirements(text string) (map[string]any, error) {
	cleaned := stripCodeFence(text)

	var req map[string]any
	if err := json.Unmarshal([]byte(cleaned), &req); err != nil {
		return nil, fmt.Errorf("parse requirements JSON: %w", err)
	}
	if len(req) == 0 {
		return nil, fmt.Errorf("empty requirements object")
	}
	return req, nil
}

// AppName extracts the project name from requirements, defaulting to
// "NewApp" when absent or not a string.
func AppName(requirements map[string]any) string {
	if name, ok := requirements["app_name"].(string); ok && name != "" {
		return name
	}
	return "NewApp"
}

// Features returns the requirements' feature list as strings.
func Features(requirements map[string]any) []string {
	raw, ok := requirements["features"].([]any)
	if !ok {
		return nil
	}
	var features []string
	for _, f := range raw {
		if s, ok := f.(string); ok && s != "" {
			features = append(features, s)
		}
	}
	return features
}

// FrontendFramework reads requirements.frontend.framework, defaulting to
// React.
func FrontendFramework(requirements map[string]any) string {
	if fe, ok := requirements["frontend"].(map[string]any); ok {
		if fw, ok := fe["framework"].(string); ok && fw != "" {
			return fw
		}
	}
	return "React"
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence line (``` or ```json) and a closing fence.
	lines = lines[1:]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = lines[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
