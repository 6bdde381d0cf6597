// Package emotion wraps the emotion classifier behind a total contract:
// every call yields a label, "neutral" when nothing better is known.
package emotion

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	analysis "github.com/zhouzirui/elile/backend/internal/analysis/emotion"
	"github.com/zhouzirui/elile/backend/internal/metrics"
)

// DefaultLabel is returned whenever classification is unavailable.
const DefaultLabel = string(analysis.Neutral)

// Classifier predicts the dominant emotion of a piece of text.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (string, error)
}

// Service adapts a Classifier so callers never see its failures.
type Service struct {
	classifier Classifier
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

// NewService wraps classifier. A nil classifier makes every call neutral.
func NewService(classifier Classifier, log zerolog.Logger, m *metrics.Metrics) *Service {
	return &Service{classifier: classifier, log: log, metrics: m}
}

// Name reports the backing classifier.
func (s *Service) Name() string {
	if s == nil || s.classifier == nil {
		return "none"
	}
	return s.classifier.Name()
}

// Classify returns a lower-case label for text.
func (s *Service) Classify(ctx context.Context, text string) (label string) {
	label = DefaultLabel
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("classifier", s.Name()).Interface("panic", r).Msg("emotion classifier panicked")
			label = DefaultLabel
		}
		if s != nil {
			s.metrics.RecordEmotion(label)
		}
	}()

	if s == nil || s.classifier == nil || strings.TrimSpace(text) == "" {
		return DefaultLabel
	}

	raw, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.log.Warn().Err(err).Str("classifier", s.classifier.Name()).Msg("emotion classification failed, using neutral")
		s.metrics.RecordStageFailure("emotion")
		return DefaultLabel
	}

	return NormalizeLabel(raw)
}

// Warmup runs one classification so the first turn does not pay the
// model's cold start.
func (s *Service) Warmup(ctx context.Context) error {
	if s == nil || s.classifier == nil {
		return nil
	}
	label, err := s.classifier.Classify(ctx, "مرحبا، كيف حالك؟")
	if err != nil {
		return fmt.Errorf("warm up %s classifier: %w", s.classifier.Name(), err)
	}
	s.log.Info().Str("classifier", s.classifier.Name()).Str("label", NormalizeLabel(label)).Msg("emotion classifier warmed up")
	return nil
}

// NormalizeLabel lower-cases and trims a raw label; empty becomes neutral.
func NormalizeLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, `"'.`)
	if label == "" {
		return DefaultLabel
	}
	return label
}
