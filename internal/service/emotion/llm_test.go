package emotion

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

type stubChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (s *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := s.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (s *stubChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestLLMClassifierParsesLabel(t *testing.T) {
	chatModel := &stubChatModel{reply: "Sure: {\"emotion\": \"grief\", \"confidence\": 0.82}"}
	classifier, err := NewLLMClassifier(t.Context(), chatModel)
	require.NoError(t, err)

	label, err := classifier.Classify(t.Context(), "  توفى أبوي الأسبوع الماضي  ")
	require.NoError(t, err)
	require.Equal(t, "grief", label)

	require.Len(t, chatModel.input, 2)
	require.Equal(t, schema.System, chatModel.input[0].Role)
	require.Contains(t, chatModel.input[0].Content, `{"emotion": <label>`)
	require.Equal(t, "توفى أبوي الأسبوع الماضي", chatModel.input[1].Content)
}

func TestLLMClassifierRejectsBadOutput(t *testing.T) {
	cases := map[string]*stubChatModel{
		"invoke error":  {err: errors.New("rate limited")},
		"empty":         {reply: "   "},
		"no json":       {reply: "sadness"},
		"unknown label": {reply: `{"emotion": "boredom"}`},
	}
	for name, chatModel := range cases {
		t.Run(name, func(t *testing.T) {
			classifier, err := NewLLMClassifier(t.Context(), chatModel)
			require.NoError(t, err)

			_, err = classifier.Classify(t.Context(), "hello")
			require.Error(t, err)
		})
	}
}

func TestNewLLMClassifierRequiresModel(t *testing.T) {
	_, err := NewLLMClassifier(t.Context(), nil)
	require.Error(t, err)
}
