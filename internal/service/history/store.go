// Package history stores conversation turns and renders recent context.
package history

import (
	"context"
	"errors"

	"github.com/zhouzirui/elile/backend/internal/model/history"
)

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrEmptyUserText   = errors.New("user text is empty")
	ErrEmptyAIResponse = errors.New("ai response is empty")
)

// Store is an append-only log of turns keyed by session.
type Store interface {
	// Append durably writes one turn and assigns its timestamp.
	Append(ctx context.Context, sessionID, userText, emotion, aiResponse string) (history.Turn, error)
	// Recent returns the last limit turns of the session as role-tagged
	// messages, oldest first. A missing session yields an empty slice.
	Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error)
	Close() error
}

func validateTurn(sessionID, userText, aiResponse string) error {
	switch {
	case sessionID == "":
		return ErrSessionRequired
	case userText == "":
		return ErrEmptyUserText
	case aiResponse == "":
		return ErrEmptyAIResponse
	}
	return nil
}
