package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/zhouzirui/elile/backend/internal/model/history"
)

// contentGenerator is the slice of genai.Models the engine uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the fallback engine.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
}

// GeminiEngine sends the whole conversation as one prompt to Gemini.
type GeminiEngine struct {
	models contentGenerator
	model  string
	system string
	config *genai.GenerateContentConfig
}

// NewGeminiEngine creates a Gemini API client for the fallback engine.
func NewGeminiEngine(ctx context.Context, cfg GeminiConfig, systemPrompt string) (*GeminiEngine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini engine requires an API key")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiEngine(client.Models, cfg, systemPrompt), nil
}

func newGeminiEngine(models contentGenerator, cfg GeminiConfig, systemPrompt string) *GeminiEngine {
	return &GeminiEngine{
		models: models,
		model:  cfg.Model,
		system: systemPrompt,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(cfg.Temperature),
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
	}
}

func (e *GeminiEngine) Name() string { return "fallback" }

// Generate calls GenerateContent once with the flattened prompt.
func (e *GeminiEngine) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := e.models.GenerateContent(ctx, e.model, genai.Text(e.buildPrompt(req)), e.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyReply
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func (e *GeminiEngine) buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(e.system)
	b.WriteString("\n\n---\n\nConversation History:\n")
	for _, msg := range req.Context {
		switch msg.Role {
		case history.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", msg.Content)
		case history.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
		}
	}
	fmt.Fprintf(&b, "\n---\n\nUser said: %s\n(Detected Emotion: %s)", req.UserText, req.Emotion)
	return b.String()
}
