package chat

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elile/backend/internal/model/history"
	"github.com/zhouzirui/elile/backend/internal/service/turn"
	"github.com/zhouzirui/elile/backend/pkg/utils"
)

// DefaultMaxAudioBytes 单次上传音频的默认上限（32MB）
const DefaultMaxAudioBytes int64 = 32 << 20

// TurnService 抽象单轮对话编排，便于测试
type TurnService interface {
	HandleTurn(ctx context.Context, sessionID string, audio []byte, format string) (*turn.Reply, error)
}

// HistoryReader 读取最近的对话上下文
type HistoryReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]history.Message, error)
}

// Handler 语音对话的HTTP处理器
type Handler struct {
	turns         TurnService
	history       HistoryReader
	maxAudioBytes int64
	historyWindow int
	log           zerolog.Logger
}

// New 创建对话处理器
func New(turns TurnService, historyReader HistoryReader, maxAudioBytes int64, historyWindow int, log zerolog.Logger) *Handler {
	if maxAudioBytes <= 0 {
		maxAudioBytes = DefaultMaxAudioBytes
	}
	// 与编排器一致：0 表示不带上下文，负数取默认窗口
	if historyWindow < 0 {
		historyWindow = turn.DefaultWindow
	}
	return &Handler{
		turns:         turns,
		history:       historyReader,
		maxAudioBytes: maxAudioBytes,
		historyWindow: historyWindow,
		log:           log,
	}
}

// RegisterRoutes 注册 POST /chat
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

// RegisterHistoryRoutes 注册会话历史查询
func (h *Handler) RegisterHistoryRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/history", h.handleHistory)
}

// handleChat 接收一段录音，返回合成后的语音回复
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	// 预留 1MB 给其他表单字段
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxAudioBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusBadRequest, "audio_file is too large")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	file, header, err := r.FormFile("audio_file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio_file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio_file")
		return
	}

	format := inferAudioFormat(header.Filename, header.Header.Get("Content-Type"))

	reply, err := h.turns.HandleTurn(r.Context(), sessionID, audio, format)
	if err != nil {
		var turnErr *turn.Error
		if errors.As(err, &turnErr) {
			if turnErr.Kind == turn.KindServer {
				h.log.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
			}
			utils.RespondError(w, turnErr.Status(), turnErr.Public())
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
		utils.RespondError(w, http.StatusInternalServerError, turn.PublicServerMessage)
		return
	}

	w.Header().Set("X-Turn-ID", reply.TurnID)
	w.Header().Set("X-Detected-Emotion", reply.Emotion)
	w.Header().Set("X-Elapsed-Ms", strconv.FormatInt(reply.Elapsed.Milliseconds(), 10))
	utils.RespondAudio(w, reply.ContentType, reply.Audio)
}

// handleHistory 返回最近的对话上下文，便于排查
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionID is required")
		return
	}

	limit := h.historyWindow
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	messages, err := h.history.Recent(r.Context(), sessionID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("history read failed")
		utils.RespondError(w, http.StatusInternalServerError, turn.PublicServerMessage)
		return
	}
	if messages == nil {
		messages = []history.Message{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"limit":     limit,
		"messages":  messages,
	})
}

// inferAudioFormat 先看文件扩展名，再看 Content-Type
func inferAudioFormat(filename, contentType string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")); ext {
	case "wav", "mp3", "webm", "m4a", "aac", "ogg", "flac":
		return ext
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "wav"
	}
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4", "audio/x-m4a":
		return "m4a"
	default:
		return "wav"
	}
}
