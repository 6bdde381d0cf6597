package speech

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/elile/backend/internal/model/speech"
)

// WhisperRecognizer 通过 OpenAI 兼容接口调用 Whisper 转写整段音频
type WhisperRecognizer struct {
	client   *openai.Client
	model    string
	language string
	prompt   string
}

// NewWhisperRecognizer 根据配置创建 Whisper 识别器，BaseURL 为空时使用官方地址。
func NewWhisperRecognizer(cfg *speech.SpeechConfig) (*WhisperRecognizer, error) {
	if cfg == nil || strings.TrimSpace(cfg.OpenAIKey) == "" {
		return nil, fmt.Errorf("whisper 识别需要 OPENAI_API_KEY")
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.OpenAIKey))
	if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
		clientCfg.BaseURL = base
	}

	return &WhisperRecognizer{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    firstNonEmpty(cfg.WhisperModel, openai.Whisper1),
		language: firstNonEmpty(cfg.ASRLanguage, "ar"),
		prompt:   cfg.ASRPrompt,
	}, nil
}

func (w *WhisperRecognizer) Name() string { return "whisper" }

// Recognize 上传音频并返回转写文本。
func (w *WhisperRecognizer) Recognize(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	filename := req.FilePath
	if filename == "" {
		filename = "audio." + firstNonEmpty(req.Format, "wav")
	}

	audioReq := openai.AudioRequest{
		Model:    w.model,
		FilePath: filepath.Base(filename),
		Reader:   req.AudioData,
		Language: firstNonEmpty(req.Language, w.language),
		Prompt:   w.prompt,
	}
	if req.AudioData == nil {
		// 没有 Reader 时由客户端直接打开文件
		audioReq.FilePath = filename
	}

	resp, err := w.client.CreateTranscription(ctx, audioReq)
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	return &speech.ASRResponse{
		SessionID:  req.SessionID,
		Text:       resp.Text,
		Confidence: estimateASRConfidence(resp.Text),
		Duration:   int64(resp.Duration * 1000),
		RequestID:  uuid.NewString(),
		CreatedAt:  time.Now(),
	}, nil
}
