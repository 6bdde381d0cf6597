package app

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/elile/backend/internal/config"
	"github.com/zhouzirui/elile/backend/internal/logger"
	"github.com/zhouzirui/elile/backend/internal/service/turn"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{Addr: ":0"},
		Speech:  config.SpeechConfig{Recognizer: config.RecognizerVolcengine, TTSFormat: "wav", TTSSampleRate: 16000},
		Emotion: config.EmotionConfig{Classifier: config.ClassifierKeywords, Timeout: time.Second},
		History: config.HistoryConfig{Backend: config.HistoryBackendMemory, Window: 10},
		Turn:    config.TurnConfig{LatencyBudget: 20 * time.Second, TempDir: t.TempDir(), MaxAudioBytes: 1 << 20},
	}
}

func TestBuildOfflineWiring(t *testing.T) {
	a, err := Build(t.Context(), offlineConfig(t), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.Empty(t, a.Generator.Engines())
	require.Equal(t, "keywords", a.Emotion.Name())
	require.Equal(t, "volcengine", a.Speech.RecognizerName())
	require.Equal(t, 10, a.Orchestrator.Window())

	a.Warmup(t.Context())

	rr := httptest.NewRecorder()
	a.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"recognizer":"volcengine"`)
	require.Contains(t, rr.Body.String(), `"synthesisFormat":""`)
}

func TestBuildWithoutCredentialsRejectsTurnAsUnintelligible(t *testing.T) {
	a, err := Build(t.Context(), offlineConfig(t), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	_, err = a.Orchestrator.HandleTurn(t.Context(), "s1", []byte("RIFF"), "wav")

	var turnErr *turn.Error
	require.True(t, errors.As(err, &turnErr))
	require.Equal(t, turn.KindInput, turnErr.Kind)
	require.ErrorIs(t, err, turn.ErrEmptyTranscription)
}

func TestBuildRejectsMissingPersonaFile(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.PersonaFile = "/nonexistent/persona.yaml"

	_, err := Build(t.Context(), cfg, logger.Nop())
	require.Error(t, err)
}

func TestBuildLogsStartupWarnings(t *testing.T) {
	var logs bytes.Buffer
	a, err := Build(t.Context(), offlineConfig(t), zerolog.New(&logs))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	out := logs.String()
	require.Contains(t, out, "ark credentials not configured, skipping primary engine")
	require.Contains(t, out, "speech synthesis credentials not configured, every turn will fail at synthesis")
	require.Contains(t, out, "no response engine configured")
}
