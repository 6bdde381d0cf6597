package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/elile/backend/internal/model/history"
	historyservice "github.com/zhouzirui/elile/backend/internal/service/history"
	"github.com/zhouzirui/elile/backend/internal/service/turn"
)

type fakeTurns struct {
	reply     *turn.Reply
	err       error
	sessionID string
	audio     []byte
	format    string
}

func (f *fakeTurns) HandleTurn(_ context.Context, sessionID string, audio []byte, format string) (*turn.Reply, error) {
	f.sessionID = sessionID
	f.audio = audio
	f.format = format
	return f.reply, f.err
}

func setupRouter(turns TurnService, store HistoryReader, maxBytes int64) *chi.Mux {
	return setupRouterWithWindow(turns, store, maxBytes, 10)
}

func setupRouterWithWindow(turns TurnService, store HistoryReader, maxBytes int64, window int) *chi.Mux {
	handler := New(turns, store, maxBytes, window, zerolog.Nop())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	r.Route("/api", handler.RegisterHistoryRoutes)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, filename string, audio []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("audio_file", filename)
		require.NoError(t, err)
		_, err = part.Write(audio)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postChat(t *testing.T, r http.Handler, fields map[string]string, filename string, audio []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, filename, audio)
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	return payload["error"]
}

func TestChatReturnsAudio(t *testing.T) {
	turns := &fakeTurns{reply: &turn.Reply{
		TurnID:      "turn-1",
		Audio:       []byte("RIFF-audio"),
		ContentType: "audio/wav",
		Emotion:     "sadness",
		Elapsed:     1500 * time.Millisecond,
	}}
	r := setupRouter(turns, historyservice.NewMemoryStore(), 0)

	rr := postChat(t, r, map[string]string{"session_id": "s1"}, "recording.mp3", []byte("audio"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "audio/wav", rr.Header().Get("Content-Type"))
	require.Equal(t, "turn-1", rr.Header().Get("X-Turn-ID"))
	require.Equal(t, "sadness", rr.Header().Get("X-Detected-Emotion"))
	require.Equal(t, "1500", rr.Header().Get("X-Elapsed-Ms"))
	require.Equal(t, "RIFF-audio", rr.Body.String())

	require.Equal(t, "s1", turns.sessionID)
	require.Equal(t, []byte("audio"), turns.audio)
	require.Equal(t, "mp3", turns.format)
}

func TestChatMissingFields(t *testing.T) {
	turns := &fakeTurns{}
	r := setupRouter(turns, historyservice.NewMemoryStore(), 0)

	rr := postChat(t, r, map[string]string{}, "a.wav", []byte("audio"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "session_id is required", decodeError(t, rr))

	rr = postChat(t, r, map[string]string{"session_id": "s1"}, "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "audio_file is required", decodeError(t, rr))

	require.Empty(t, turns.sessionID, "orchestrator must not run on invalid input")
}

func TestChatRejectsNonMultipart(t *testing.T) {
	r := setupRouter(&fakeTurns{}, historyservice.NewMemoryStore(), 0)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(`{"session_id":"s1"}`)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatRejectsOversizeUpload(t *testing.T) {
	turns := &fakeTurns{}
	r := setupRouter(turns, historyservice.NewMemoryStore(), 16)

	rr := postChat(t, r, map[string]string{"session_id": "s1"}, "a.wav", bytes.Repeat([]byte("x"), 2<<20))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, turns.sessionID)
}

func TestChatMapsTurnErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "empty transcription",
			err:     &turn.Error{Kind: turn.KindInput, Stage: turn.StageTranscribe, Err: turn.ErrEmptyTranscription},
			status:  http.StatusBadRequest,
			message: "Could not understand audio or the speech was empty.",
		},
		{
			name:    "synthesis failure",
			err:     &turn.Error{Kind: turn.KindServer, Stage: turn.StageSynthesize, Err: fmt.Errorf("%w: secret detail", turn.ErrSynthesis)},
			status:  http.StatusInternalServerError,
			message: turn.PublicServerMessage,
		},
		{
			name:    "untyped error",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			message: turn.PublicServerMessage,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouter(&fakeTurns{err: tc.err}, historyservice.NewMemoryStore(), 0)
			rr := postChat(t, r, map[string]string{"session_id": "s1"}, "a.wav", []byte("audio"))

			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, tc.message, decodeError(t, rr))
			require.NotContains(t, rr.Body.String(), "secret detail")
		})
	}
}

func TestHistoryEndpoint(t *testing.T) {
	store := historyservice.NewMemoryStore()
	for i := range 3 {
		_, err := store.Append(t.Context(), "s1", fmt.Sprintf("u%d", i), "neutral", fmt.Sprintf("a%d", i))
		require.NoError(t, err)
	}
	r := setupRouter(&fakeTurns{}, store, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/history?limit=2", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		SessionID string            `json:"sessionId"`
		Limit     int               `json:"limit"`
		Messages  []history.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, 2, payload.Limit)
	require.Equal(t, []history.Message{
		{Role: history.RoleUser, Content: "u1"},
		{Role: history.RoleAssistant, Content: "a1"},
		{Role: history.RoleUser, Content: "u2"},
		{Role: history.RoleAssistant, Content: "a2"},
	}, payload.Messages)
}

func TestHistoryEndpointValidation(t *testing.T) {
	r := setupRouter(&fakeTurns{}, historyservice.NewMemoryStore(), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/history?limit=abc", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/unknown/history", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"messages":[]`)
}

func TestInferAudioFormat(t *testing.T) {
	cases := []struct {
		filename    string
		contentType string
		want        string
	}{
		{"clip.WAV", "", "wav"},
		{"clip.webm", "", "webm"},
		{"blob", "audio/mpeg", "mp3"},
		{"blob", "audio/ogg; codecs=opus", "ogg"},
		{"blob", "application/octet-stream", "wav"},
		{"", "", "wav"},
	}
	for _, tc := range cases {
		if got := inferAudioFormat(tc.filename, tc.contentType); got != tc.want {
			t.Errorf("inferAudioFormat(%q, %q) = %q, want %q", tc.filename, tc.contentType, got, tc.want)
		}
	}
}

func TestHistoryEndpointFollowsConfiguredWindow(t *testing.T) {
	store := historyservice.NewMemoryStore()
	_, err := store.Append(t.Context(), "s1", "u0", "neutral", "a0")
	require.NoError(t, err)

	cases := []struct {
		name      string
		window    int
		wantLimit int
		wantCount int
	}{
		{name: "zero window sends no context", window: 0, wantLimit: 0, wantCount: 0},
		{name: "negative selects default", window: -1, wantLimit: turn.DefaultWindow, wantCount: 2},
		{name: "explicit window", window: 3, wantLimit: 3, wantCount: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setupRouterWithWindow(&fakeTurns{}, store, 0, tc.window)

			req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/history", nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)

			var payload struct {
				Limit    int               `json:"limit"`
				Messages []history.Message `json:"messages"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
			require.Equal(t, tc.wantLimit, payload.Limit)
			require.Len(t, payload.Messages, tc.wantCount)
		})
	}
}
