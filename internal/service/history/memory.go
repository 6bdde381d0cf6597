package history

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/elile/backend/internal/model/history"
)

// MemoryStore keeps turns in process memory. It is the default backend when
// no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	turns  map[string][]history.Turn
	nextID int64
	now    func() time.Time
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns: make(map[string][]history.Turn),
		now:   time.Now,
	}
}

// Append adds a turn to the session log.
func (s *MemoryStore) Append(ctx context.Context, sessionID, userText, emotion, aiResponse string) (history.Turn, error) {
	if err := validateTurn(sessionID, userText, aiResponse); err != nil {
		return history.Turn{}, err
	}
	if err := ctx.Err(); err != nil {
		return history.Turn{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	existing := s.turns[sessionID]
	if n := len(existing); n > 0 && ts.Before(existing[n-1].Timestamp) {
		// wall clock stepped back; keep per-session order
		ts = existing[n-1].Timestamp
	}

	s.nextID++
	turn := history.Turn{
		ID:              s.nextID,
		SessionID:       sessionID,
		UserText:        userText,
		DetectedEmotion: emotion,
		AIResponse:      aiResponse,
		Timestamp:       ts,
	}
	s.turns[sessionID] = append(existing, turn)
	return turn, nil
}

// Recent returns the last limit turns of a session as messages.
func (s *MemoryStore) Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []history.Message{}, nil
	}

	s.mu.RLock()
	turns := s.turns[sessionID]
	start := 0
	if len(turns) > limit {
		start = len(turns) - limit
	}
	window := make([]history.Turn, len(turns)-start)
	copy(window, turns[start:])
	s.mu.RUnlock()

	return history.ToMessages(window), nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
