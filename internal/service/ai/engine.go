package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/elile/backend/internal/model/history"
)

// ErrEmptyReply is returned when an engine answers with blank text.
var ErrEmptyReply = errors.New("engine returned an empty reply")

// Request is the input shared by every generation engine.
type Request struct {
	SessionID string
	Context   []history.Message
	UserText  string
	Emotion   string
}

// Engine produces one reply for a request. Implementations must not retry.
type Engine interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// annotate prefixes the utterance with the detected emotion label.
func annotate(userText, emotion string) string {
	return fmt.Sprintf("(Detected Emotion: %s) %s", emotion, userText)
}
