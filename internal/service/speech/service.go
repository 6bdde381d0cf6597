package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/elile/backend/internal/model/speech"
)

// Recognizer 将一段完整录音转写为文本
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error)
}

// Synthesizer 将文本合成为固定格式的音频
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
	OutputFormat() string
}

// ErrSynthesizerUnavailable 未配置合成后端
var ErrSynthesizerUnavailable = errors.New("speech synthesizer is not configured")

// SynthesisError 合成失败，保留底层原因
type SynthesisError struct {
	SessionID string
	Err       error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speech synthesis failed for session %s: %v", e.SessionID, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Service 语音服务，对外提供转写与合成两个适配入口
type Service struct {
	config      *speech.SpeechConfig
	recognizer  Recognizer
	synthesizer Synthesizer
	log         zerolog.Logger
}

// NewService 根据配置选择识别后端并创建语音服务
func NewService(config *speech.SpeechConfig, log zerolog.Logger) (*Service, error) {
	var recognizer Recognizer
	switch strings.ToLower(strings.TrimSpace(config.Recognizer)) {
	case "whisper":
		w, err := NewWhisperRecognizer(config)
		if err != nil {
			return nil, err
		}
		recognizer = w
	case "", "volcengine":
		recognizer = NewVolcengineASRClient(config, log)
	default:
		return nil, fmt.Errorf("unknown speech recognizer %q", config.Recognizer)
	}

	var synthesizer Synthesizer
	if _, _, err := resolveCredentials(config); err == nil {
		synthesizer = NewVolcengineTTSClient(config, log)
	}

	return NewServiceWith(config, recognizer, synthesizer, log), nil
}

// NewServiceWith 使用给定的识别与合成后端创建语音服务
func NewServiceWith(config *speech.SpeechConfig, recognizer Recognizer, synthesizer Synthesizer, log zerolog.Logger) *Service {
	if config == nil {
		config = &speech.SpeechConfig{}
	}
	return &Service{
		config:      config,
		recognizer:  recognizer,
		synthesizer: synthesizer,
		log:         log,
	}
}

// RecognizerName 当前识别后端名称
func (s *Service) RecognizerName() string {
	if s.recognizer == nil {
		return ""
	}
	return s.recognizer.Name()
}

// OutputFormat 合成输出格式，未配置合成时为空
func (s *Service) OutputFormat() string {
	if s.synthesizer == nil {
		return ""
	}
	return s.synthesizer.OutputFormat()
}

// Transcribe 转写暂存的音频文件。任何故障都会记录日志并返回空串。
func (s *Service) Transcribe(ctx context.Context, sessionID, path, format string) (text string) {
	log := s.log.With().Str("session_id", sessionID).Str("stage", "transcribe").Logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("transcription panicked")
			text = ""
		}
	}()

	if s.recognizer == nil {
		log.Error().Msg("no speech recognizer configured")
		return ""
	}

	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Msg("open staged audio")
		return ""
	}
	defer f.Close()

	resp, err := s.recognizer.Recognize(ctx, &speech.ASRRequest{
		SessionID: sessionID,
		AudioData: f,
		FilePath:  path,
		Format:    format,
		Language:  s.config.ASRLanguage,
	})
	if err != nil {
		log.Error().Err(err).Str("recognizer", s.recognizer.Name()).Msg("transcription failed")
		return ""
	}
	if resp == nil {
		return ""
	}

	text = strings.TrimSpace(resp.Text)
	log.Debug().
		Str("recognizer", s.recognizer.Name()).
		Dur("elapsed", time.Since(start)).
		Int("chars", len([]rune(text))).
		Msg("transcription complete")
	return text
}

// Synthesize 合成回复音频，失败时返回 *SynthesisError。
func (s *Service) Synthesize(ctx context.Context, sessionID, text string) (*speech.TTSResponse, error) {
	if s.synthesizer == nil {
		return nil, &SynthesisError{SessionID: sessionID, Err: ErrSynthesizerUnavailable}
	}

	resp, err := s.synthesizer.Synthesize(ctx, &speech.TTSRequest{
		SessionID: sessionID,
		Text:      text,
		Voice:     s.config.TTSVoice,
		Speed:     s.config.TTSSpeed,
		Volume:    s.config.TTSVolume,
		Language:  s.config.TTSLanguage,
	})
	if err != nil {
		return nil, &SynthesisError{SessionID: sessionID, Err: err}
	}
	if resp == nil || len(resp.AudioData) == 0 {
		return nil, &SynthesisError{SessionID: sessionID, Err: errors.New("empty audio")}
	}
	return resp, nil
}
