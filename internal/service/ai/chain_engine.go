package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/elile/backend/internal/model/history"
)

// ChainEngine runs the persona prompt through an eino chain backed by the
// primary chat model. Sampling parameters live on the chat model itself.
type ChainEngine struct {
	system string
	chain  compose.Runnable[map[string]any, *schema.Message]
}

// NewChainEngine compiles the template → model chain.
func NewChainEngine(ctx context.Context, chatModel model.ChatModel, systemPrompt string) (*ChainEngine, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chain engine requires a chat model")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainEngine{system: systemPrompt, chain: runnable}, nil
}

func (e *ChainEngine) Name() string { return "primary" }

// Generate invokes the chain once.
func (e *ChainEngine) Generate(ctx context.Context, req Request) (string, error) {
	msg, err := e.chain.Invoke(ctx, map[string]any{
		"system":  e.system,
		"history": toSchemaMessages(req.Context),
		"query":   annotate(req.UserText, req.Emotion),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(msg.Content), nil
}

func toSchemaMessages(messages []history.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case history.RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case history.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
