package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// LLMClassifier asks the chat model for a go-emotions label.
type LLMClassifier struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewLLMClassifier compiles the classification chain on chatModel.
func NewLLMClassifier(ctx context.Context, chatModel model.ChatModel) (*LLMClassifier, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("emotion classifier requires a chat model")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(emotionSystemPrompt),
		schema.UserMessage("{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}
	return &LLMClassifier{chain: runnable}, nil
}

func (c *LLMClassifier) Name() string { return "llm" }

// Classify invokes the chain and parses its JSON answer.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (string, error) {
	msg, err := c.chain.Invoke(ctx, map[string]any{"text": strings.TrimSpace(text)})
	if err != nil {
		return "", fmt.Errorf("classifier invoke: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("classifier returned empty content")
	}

	payload, err := parseClassifierOutput(msg.Content)
	if err != nil {
		return "", fmt.Errorf("classifier output: %w", err)
	}
	if !knownLabels[NormalizeLabel(payload.Emotion)] {
		return "", fmt.Errorf("classifier returned unknown label %q", payload.Emotion)
	}
	return payload.Emotion, nil
}

type classifierPayload struct {
	Emotion    string  `json:"emotion"`
	Confidence float32 `json:"confidence"`
}

// parseClassifierOutput pulls the first JSON object out of the reply.
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// go-emotions taxonomy
var goEmotions = []string{
	"admiration", "amusement", "anger", "annoyance", "approval", "caring", "confusion",
	"curiosity", "desire", "disappointment", "disapproval", "disgust", "embarrassment",
	"excitement", "fear", "gratitude", "grief", "joy", "love", "nervousness", "optimism",
	"pride", "realization", "relief", "remorse", "sadness", "surprise", "neutral",
}

var knownLabels = func() map[string]bool {
	m := make(map[string]bool, len(goEmotions))
	for _, l := range goEmotions {
		m[l] = true
	}
	return m
}()

var emotionSystemPrompt = "You classify the emotion of a single utterance, usually in Omani or Gulf Arabic. " +
	"Answer with one JSON object and nothing else: {{\"emotion\": <label>, \"confidence\": <0..1>}}. " +
	"The label must be one of: " + strings.Join(goEmotions, ", ") + "."
