// Package turn runs one voice turn: transcribe, classify, generate, persist
// and synthesize.
package turn

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elile/backend/internal/metrics"
	"github.com/zhouzirui/elile/backend/internal/model/history"
	"github.com/zhouzirui/elile/backend/internal/model/speech"
)

const (
	DefaultWindow        = 10
	DefaultLatencyBudget = 20 * time.Second
)

// Transcriber turns a staged audio file into text. It never fails; an empty
// string means nothing usable was heard.
type Transcriber interface {
	Transcribe(ctx context.Context, sessionID, path, format string) string
}

// EmotionClassifier labels text. It never fails.
type EmotionClassifier interface {
	Classify(ctx context.Context, text string) string
}

// ResponseGenerator produces a non-empty reply. It never fails.
type ResponseGenerator interface {
	Generate(ctx context.Context, sessionID string, messages []history.Message, userText, emotion string) string
}

// Synthesizer renders the reply as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, sessionID, text string) (*speech.TTSResponse, error)
}

// HistoryStore is the part of the history store a turn needs.
type HistoryStore interface {
	Append(ctx context.Context, sessionID, userText, emotion, aiResponse string) (history.Turn, error)
	Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error)
}

// Deps are the process-wide collaborators of the orchestrator.
type Deps struct {
	Transcriber Transcriber
	Classifier  EmotionClassifier
	Generator   ResponseGenerator
	Synthesizer Synthesizer
	History     HistoryStore
}

// Options tune a turn. A zero Window disables context; a negative one selects
// DefaultWindow. Zero LatencyBudget and nil Now select the defaults.
type Options struct {
	Window        int
	LatencyBudget time.Duration
	TempDir       string
	// Now is the clock used to measure turn latency.
	Now func() time.Time
}

// Reply is the outcome of a successful turn.
type Reply struct {
	TurnID      string
	Audio       []byte
	ContentType string
	Format      string
	Transcript  string
	Emotion     string
	Text        string
	Elapsed     time.Duration
}

// Orchestrator is safe for concurrent use; it holds only injected singletons.
type Orchestrator struct {
	deps    Deps
	window  int
	budget  time.Duration
	tempDir string
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New wires an orchestrator. All dependencies are required.
func New(deps Deps, opts Options, log zerolog.Logger, m *metrics.Metrics) (*Orchestrator, error) {
	switch {
	case deps.Transcriber == nil:
		return nil, fmt.Errorf("turn: transcriber is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("turn: emotion classifier is required")
	case deps.Generator == nil:
		return nil, fmt.Errorf("turn: response generator is required")
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("turn: synthesizer is required")
	case deps.History == nil:
		return nil, fmt.Errorf("turn: history store is required")
	}

	o := &Orchestrator{
		deps:    deps,
		window:  opts.Window,
		budget:  opts.LatencyBudget,
		tempDir: opts.TempDir,
		now:     opts.Now,
		log:     log,
		metrics: m,
	}
	if o.window < 0 {
		o.window = DefaultWindow
	}
	if o.budget <= 0 {
		o.budget = DefaultLatencyBudget
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Window returns the number of past turns used as context.
func (o *Orchestrator) Window() int { return o.window }

// HandleTurn runs one turn end to end. Every failure is an *Error.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID string, audio []byte, format string) (reply *Reply, err error) {
	turnID := uuid.NewString()
	log := o.log.With().Str("session_id", sessionID).Str("turn_id", turnID).Logger()
	start := o.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("turn panicked")
			o.metrics.RecordStageFailure(string(StagePanic))
			reply = nil
			err = serverError(StagePanic, fmt.Errorf("panic: %v", r), nil)
		}
		o.finish(log, start, reply, err)
	}()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, inputError(StageValidate, ErrSessionRequired)
	}
	if len(audio) == 0 {
		return nil, inputError(StageValidate, ErrEmptyAudio)
	}

	path, cleanup, stageErr := o.stage(audio, format)
	if stageErr != nil {
		o.metrics.RecordStageFailure(string(StageStage))
		log.Error().Err(stageErr).Msg("staging audio failed")
		return nil, serverError(StageStage, ErrStaging, stageErr)
	}
	defer cleanup()

	text := strings.TrimSpace(o.deps.Transcriber.Transcribe(ctx, sessionID, path, normalizeFormat(format)))
	if text == "" {
		o.metrics.RecordStageFailure(string(StageTranscribe))
		log.Info().Msg("empty transcription")
		return nil, inputError(StageTranscribe, ErrEmptyTranscription)
	}

	emotion := o.deps.Classifier.Classify(ctx, text)

	messages, readErr := o.deps.History.Recent(ctx, sessionID, o.window)
	if readErr != nil {
		o.metrics.RecordStageFailure(string(StageHistoryRead))
		log.Warn().Err(readErr).Msg("history read failed, continuing without context")
		messages = nil
	}

	answer := o.deps.Generator.Generate(ctx, sessionID, messages, text, emotion)

	if _, writeErr := o.deps.History.Append(ctx, sessionID, text, emotion, answer); writeErr != nil {
		o.metrics.RecordStageFailure(string(StageHistoryWrite))
		log.Error().Err(writeErr).Msg("history write failed")
		return nil, serverError(StageHistoryWrite, ErrHistoryWrite, writeErr)
	}

	audioReply, synthErr := o.deps.Synthesizer.Synthesize(ctx, sessionID, answer)
	if synthErr != nil {
		o.metrics.RecordStageFailure(string(StageSynthesize))
		log.Error().Err(synthErr).Msg("synthesis failed")
		return nil, serverError(StageSynthesize, ErrSynthesis, synthErr)
	}

	return &Reply{
		TurnID:      turnID,
		Audio:       audioReply.AudioData,
		ContentType: speech.ContentType(audioReply.Format),
		Format:      audioReply.Format,
		Transcript:  text,
		Emotion:     emotion,
		Text:        answer,
	}, nil
}

// finish records latency for every outcome and warns past the budget.
func (o *Orchestrator) finish(log zerolog.Logger, start time.Time, reply *Reply, err error) {
	elapsed := o.now().Sub(start)

	outcome := "success"
	if err != nil {
		outcome = "server_error"
		if te, ok := err.(*Error); ok && te.Kind == KindInput {
			outcome = "input_error"
		}
	}
	o.metrics.RecordTurn(outcome, elapsed)

	if elapsed > o.budget {
		o.metrics.RecordSlowTurn()
		log.Warn().
			Dur("elapsed", elapsed).
			Dur("budget", o.budget).
			Msg("turn exceeded latency budget")
	}

	if reply != nil {
		reply.Elapsed = elapsed
		log.Info().Dur("elapsed", elapsed).Str("emotion", reply.Emotion).Msg("turn complete")
	}
}

// stage writes the upload to a uniquely named temp file. The returned cleanup
// removes it and is safe to call once on every path.
func (o *Orchestrator) stage(audio []byte, format string) (string, func(), error) {
	f, err := os.CreateTemp(o.tempDir, "turn-*."+normalizeFormat(format))
	if err != nil {
		return "", nil, err
	}
	o.metrics.TempFileStaged()

	path := f.Name()
	cleanup := func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			o.log.Warn().Err(rmErr).Str("path", path).Msg("failed to remove staged audio")
		}
		o.metrics.TempFileRemoved()
	}

	if _, err := f.Write(audio); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// normalizeFormat keeps a short lowercase alphanumeric extension, wav by default.
func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if format == "" || len(format) > 8 {
		return "wav"
	}
	for _, r := range format {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "wav"
		}
	}
	return format
}
