package history

import (
	"context"
	"time"

	"github.com/zhouzirui/elile/backend/internal/metrics"
	"github.com/zhouzirui/elile/backend/internal/model/history"
)

type instrumented struct {
	Store
	metrics *metrics.Metrics
}

// Instrument records operation counts and durations of store on m.
func Instrument(store Store, m *metrics.Metrics) Store {
	if m == nil {
		return store
	}
	return &instrumented{Store: store, metrics: m}
}

func (s *instrumented) Append(ctx context.Context, sessionID, userText, emotion, aiResponse string) (history.Turn, error) {
	start := time.Now()
	turn, err := s.Store.Append(ctx, sessionID, userText, emotion, aiResponse)
	s.metrics.RecordHistoryOp("append", time.Since(start), err)
	return turn, err
}

func (s *instrumented) Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error) {
	start := time.Now()
	messages, err := s.Store.Recent(ctx, sessionID, limit)
	s.metrics.RecordHistoryOp("recent", time.Since(start), err)
	return messages, err
}
