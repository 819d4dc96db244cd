package llm

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rljarm/AIServer/internal/model"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = string(openai.SmallEmbedding3)

	requirementsSystemPrompt = "You are a software requirements analyst. " +
		"Respond with a single JSON object describing the requested application: " +
		`{"app_name": string, "features": [string], "frontend": {"framework": string}}. ` +
		"No prose outside the JSON."
)

// OpenAIClient implements Client against any OpenAI-compatible endpoint.
// BaseURL in the model config points it at a locally hosted server when the
// model is self-hosted.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	logger         *log.Logger
}

// NewOpenAIClient builds a client from config, reading the API key from
// OPENAI_API_KEY. Local endpoints often need no key; an empty key is only
// an error when no base URL override is configured.
func NewOpenAIClient(cfg model.ModelConfig, logger *log.Logger) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set and no model base_url configured")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	name := cfg.Name
	if name == "" {
		name = defaultModel
	}
	embedding := cfg.EmbeddingModel
	if embedding == "" {
		embedding = defaultEmbeddingModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.2
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          name,
		embeddingModel: embedding,
		temperature:    temperature,
		logger:         logger,
	}, nil
}

func (c *OpenAIClient) ExtractRequirements(ctx context.Context, query string) (map[string]any, error) {
	content, err := c.chat(ctx, requirementsSystemPrompt, query)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequirements(content)
	if err != nil {
		// Malformed model output degrades to the default structure
		// rather than aborting the build.
		if c.logger != nil {
			c.logger.Printf("[WARN] requirements_parse_failed error=%v", err)
		}
		return DefaultRequirements(), nil
	}
	return req, nil
}

func (c *OpenAIClient) GenerateCode(ctx context.Context, language string, requirements map[string]any) (string, error) {
	prompt := fmt.Sprintf(
		"Based on the following requirements:\n%v\n\nGenerate %s code implementing these requirements. "+
			"Provide well-structured and idiomatic code. Respond with code only.",
		requirements, language,
	)
	content, err := c.chat(ctx, "You are an expert software engineer.", prompt)
	if err != nil {
		return "", err
	}
	return stripCodeFence(content), nil
}

func (c *OpenAIClient) RepairCode(ctx context.Context, projectName string) (bool, error) {
	prompt := fmt.Sprintf(
		"The code in project %s has errors according to its test logs. "+
			"Suggest and provide code fixes directly.",
		projectName,
	)
	content, err := c.chat(ctx, "You are an expert software engineer fixing failing tests.", prompt)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(content) != "", nil
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (c *OpenAIClient) chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
