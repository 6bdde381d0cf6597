package emotion

import (
	"context"

	analysis "github.com/zhouzirui/elile/backend/internal/analysis/emotion"
)

// KeywordClassifier runs the local keyword heuristics. It needs no network
// and never fails.
type KeywordClassifier struct{}

func (KeywordClassifier) Name() string { return "keywords" }

func (KeywordClassifier) Classify(_ context.Context, text string) (string, error) {
	return string(analysis.Analyze(text).Label), nil
}
