package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/elile/backend/internal/model/history"
)

type fakeChatModel struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestChainEngineBuildsMessages(t *testing.T) {
	chatModel := &fakeChatModel{reply: "  الله يعينك  "}
	engine, err := NewChainEngine(t.Context(), chatModel, "system prompt")
	require.NoError(t, err)
	require.Equal(t, "primary", engine.Name())

	reply, err := engine.Generate(t.Context(), Request{
		Context: []history.Message{
			{Role: history.RoleUser, Content: "مرحبا"},
			{Role: history.RoleAssistant, Content: "هلا والله"},
		},
		UserText: "تعبان اليوم",
		Emotion:  "sadness",
	})
	require.NoError(t, err)
	require.Equal(t, "الله يعينك", reply)

	require.Len(t, chatModel.input, 4)
	require.Equal(t, schema.System, chatModel.input[0].Role)
	require.Equal(t, "system prompt", chatModel.input[0].Content)
	require.Equal(t, schema.User, chatModel.input[1].Role)
	require.Equal(t, "مرحبا", chatModel.input[1].Content)
	require.Equal(t, schema.Assistant, chatModel.input[2].Role)
	require.Equal(t, schema.User, chatModel.input[3].Role)
	require.Equal(t, "(Detected Emotion: sadness) تعبان اليوم", chatModel.input[3].Content)
}

func TestChainEngineWithoutHistory(t *testing.T) {
	chatModel := &fakeChatModel{reply: "ok"}
	engine, err := NewChainEngine(t.Context(), chatModel, "system")
	require.NoError(t, err)

	_, err = engine.Generate(t.Context(), Request{UserText: "hi", Emotion: "neutral"})
	require.NoError(t, err)
	require.Len(t, chatModel.input, 2)
}

func TestChainEngineErrors(t *testing.T) {
	engine, err := NewChainEngine(t.Context(), &fakeChatModel{err: errors.New("ark down")}, "system")
	require.NoError(t, err)
	_, err = engine.Generate(t.Context(), Request{UserText: "hi", Emotion: "neutral"})
	require.Error(t, err)

	engine, err = NewChainEngine(t.Context(), &fakeChatModel{reply: "   "}, "system")
	require.NoError(t, err)
	_, err = engine.Generate(t.Context(), Request{UserText: "hi", Emotion: "neutral"})
	require.ErrorIs(t, err, ErrEmptyReply)

	_, err = NewChainEngine(t.Context(), nil, "system")
	require.Error(t, err)
}
