// Package app assembles the process-wide services from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elile/backend/internal/config"
	"github.com/zhouzirui/elile/backend/internal/handler"
	"github.com/zhouzirui/elile/backend/internal/logger"
	"github.com/zhouzirui/elile/backend/internal/metrics"
	"github.com/zhouzirui/elile/backend/internal/model/persona"
	"github.com/zhouzirui/elile/backend/internal/service/ai"
	"github.com/zhouzirui/elile/backend/internal/service/emotion"
	"github.com/zhouzirui/elile/backend/internal/service/history"
	"github.com/zhouzirui/elile/backend/internal/service/speech"
	"github.com/zhouzirui/elile/backend/internal/service/turn"
)

// App holds the singletons shared by every turn.
type App struct {
	Config       *config.Config
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Store        history.Store
	History      history.Store
	Speech       *speech.Service
	Emotion      *emotion.Service
	Generator    *ai.Generator
	Persona      persona.Persona
	Orchestrator *turn.Orchestrator

	log zerolog.Logger
}

// Build wires the store, adapters, engines and orchestrator. Callers must
// Close the returned App.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, err := openHistory(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	log.Info().Str("backend", cfg.History.Backend).Int("window", cfg.History.Window).Msg("history store ready")

	a := &App{
		Config:   cfg,
		Registry: reg,
		Metrics:  m,
		Store:    store,
		History:  history.Instrument(store, m),
		log:      log,
	}

	a.Speech, err = speech.NewService(cfg.Speech.ModelConfig(), logger.Component(log, "speech"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initializing speech service: %w", err)
	}
	if !cfg.Speech.SynthesisEnabled() {
		log.Warn().Msg("speech synthesis credentials not configured, every turn will fail at synthesis")
	}

	a.Persona, err = persona.LoadFile(cfg.PersonaFile)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading persona: %w", err)
	}

	engines, classifier := buildEngines(ctx, cfg, ai.BuildSystemPrompt(a.Persona), log)
	a.Generator = ai.NewGenerator(a.Persona.ApologyText(), logger.Component(log, "generator"), m, engines...).
		WithAttemptTimeout(cfg.Turn.GenerationTimeout)
	if len(a.Generator.Engines()) == 0 {
		log.Warn().Msg("no response engine configured, every turn will answer with the apology")
	}
	a.Emotion = emotion.NewService(classifier, logger.Component(log, "emotion"), m)

	a.Orchestrator, err = turn.New(turn.Deps{
		Transcriber: a.Speech,
		Classifier:  a.Emotion,
		Generator:   a.Generator,
		Synthesizer: a.Speech,
		History:     a.History,
	}, turn.Options{
		Window:        cfg.History.Window,
		LatencyBudget: cfg.Turn.LatencyBudget,
		TempDir:       cfg.Turn.TempDir,
	}, logger.Component(log, "turn"), m)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building turn orchestrator: %w", err)
	}

	return a, nil
}

// Warmup runs the emotion classifier once. Failures are only logged.
func (a *App) Warmup(ctx context.Context) {
	warmCtx, cancel := context.WithTimeout(ctx, a.Config.Emotion.Timeout)
	defer cancel()
	if err := a.Emotion.Warmup(warmCtx); err != nil {
		a.log.Warn().Err(err).Msg("emotion classifier warmup failed")
	}
}

// Router builds the HTTP surface over the wired services.
func (a *App) Router() http.Handler {
	return handler.NewRouter(handler.RouterConfig{
		Turns:   a.Orchestrator,
		History: a.History,
		Persona: a.Persona,
		Status: handler.Status{
			Recognizer:      a.Speech.RecognizerName(),
			Classifier:      a.Emotion.Name(),
			Engines:         a.Generator.Engines(),
			SynthesisFormat: a.Speech.OutputFormat(),
		},
		CORSOrigins:   a.Config.Server.CORSOrigins,
		MaxAudioBytes: a.Config.Turn.MaxAudioBytes,
		HistoryWindow: a.Config.History.Window,
		Gatherer:      a.Registry,
		Logger:        logger.Component(a.log, "http"),
	})
}

// Close releases the history store.
func (a *App) Close() error {
	return a.Store.Close()
}

func openHistory(ctx context.Context, cfg config.HistoryConfig) (history.Store, error) {
	if cfg.Backend != config.HistoryBackendPostgres {
		return history.NewMemoryStore(), nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	store, err := history.OpenPostgres(openCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// buildEngines wires the primary and fallback engines in order, plus the
// emotion classifier, which may share the primary chat model.
func buildEngines(ctx context.Context, cfg *config.Config, systemPrompt string, log zerolog.Logger) ([]ai.Engine, emotion.Classifier) {
	var engines []ai.Engine

	var classifier emotion.Classifier
	switch cfg.Emotion.Classifier {
	case config.ClassifierHuggingFace:
		classifier = emotion.NewHuggingFaceClassifier(cfg.Emotion.APIURL, cfg.Emotion.Model, cfg.Emotion.APIToken, cfg.Emotion.Timeout)
	case config.ClassifierKeywords:
		classifier = emotion.KeywordClassifier{}
	}

	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("primary engine unavailable, check the ARK_* settings")
		} else {
			engine, err := ai.NewChainEngine(ctx, chatModel, systemPrompt)
			if err != nil {
				log.Warn().Err(err).Msg("failed to compile primary engine")
			} else {
				engines = append(engines, engine)
				log.Info().Str("model", cfg.AI.Model).Msg("primary engine ready")
			}

			if cfg.Emotion.Classifier == config.ClassifierLLM {
				llm, err := emotion.NewLLMClassifier(ctx, chatModel)
				if err != nil {
					log.Warn().Err(err).Msg("failed to build llm emotion classifier")
				} else {
					classifier = llm
				}
			}
		}
	} else {
		log.Info().Msg("ark credentials not configured, skipping primary engine")
	}

	if cfg.Emotion.Classifier == config.ClassifierLLM && classifier == nil {
		log.Warn().Msg("llm emotion classifier requested without a chat model, falling back to keywords")
		classifier = emotion.KeywordClassifier{}
	}

	if cfg.Fallback.Enabled() {
		engine, err := ai.NewGeminiEngine(ctx, ai.GeminiConfig{
			APIKey:          cfg.Fallback.APIKey,
			Model:           cfg.Fallback.Model,
			Temperature:     cfg.Fallback.Temperature,
			MaxOutputTokens: cfg.Fallback.MaxOutputTokens,
		}, systemPrompt)
		if err != nil {
			log.Warn().Err(err).Msg("fallback engine unavailable")
		} else {
			engines = append(engines, engine)
			log.Info().Str("model", cfg.Fallback.Model).Msg("fallback engine ready")
		}
	}

	return engines, classifier
}
