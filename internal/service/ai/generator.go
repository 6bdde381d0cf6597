package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/elile/backend/internal/metrics"
	"github.com/zhouzirui/elile/backend/internal/model/history"
	"github.com/zhouzirui/elile/backend/internal/model/persona"
)

// Generator walks an ordered list of engines and ends with a constant apology.
// It always returns a non-empty reply.
type Generator struct {
	engines []Engine
	apology string
	log     zerolog.Logger
	metrics *metrics.Metrics

	// attemptTimeout bounds each engine call. Zero leaves only the caller's deadline.
	attemptTimeout time.Duration
}

// NewGenerator keeps the non-nil engines in the given order.
func NewGenerator(apology string, log zerolog.Logger, m *metrics.Metrics, engines ...Engine) *Generator {
	list := make([]Engine, 0, len(engines))
	for _, e := range engines {
		if e != nil {
			list = append(list, e)
		}
	}
	if apology == "" {
		apology = persona.DefaultApology
	}
	return &Generator{engines: list, apology: apology, log: log, metrics: m}
}

// WithAttemptTimeout bounds every engine call by d, so a stalled engine
// counts as a failure and the next one is tried.
func (g *Generator) WithAttemptTimeout(d time.Duration) *Generator {
	if d > 0 {
		g.attemptTimeout = d
	}
	return g
}

// Engines returns the configured engine names in attempt order.
func (g *Generator) Engines() []string {
	names := make([]string, 0, len(g.engines))
	for _, e := range g.engines {
		names = append(names, e.Name())
	}
	return names
}

// Generate tries each engine at most once and returns the first non-empty reply.
func (g *Generator) Generate(ctx context.Context, sessionID string, messages []history.Message, userText, emotion string) string {
	req := Request{SessionID: sessionID, Context: messages, UserText: userText, Emotion: emotion}

	for _, engine := range g.engines {
		start := time.Now()
		reply, err := g.attempt(ctx, engine, req)
		g.metrics.RecordGeneration(engine.Name(), err == nil)

		if err == nil {
			g.log.Info().
				Str("session_id", sessionID).
				Str("engine", engine.Name()).
				Dur("elapsed", time.Since(start)).
				Int("chars", len([]rune(reply))).
				Msg("reply generated")
			return reply
		}

		g.log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Str("engine", engine.Name()).
			Dur("elapsed", time.Since(start)).
			Msg("generation engine failed")
	}

	g.metrics.RecordGeneration("apology", true)
	g.log.Error().Str("session_id", sessionID).Msg("all generation engines failed, using apology")
	return g.apology
}

func (g *Generator) attempt(ctx context.Context, engine Engine, req Request) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine %s panicked: %v", engine.Name(), r)
		}
	}()

	if g.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()
	}

	reply, err = engine.Generate(ctx, req)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil && reply == "" {
		err = ErrEmptyReply
	}
	return reply, err
}
