package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elile/backend/internal/model/speech"
)

const (
	volcengineTTSPath = "/api/v3/tts/unidirectional/stream"

	defaultTTSFormat     = "wav"
	defaultTTSSampleRate = 16000
)

// VolcengineTTSClient 火山引擎TTS WebSocket客户端
type VolcengineTTSClient struct {
	config *speech.SpeechConfig
	dialer *websocket.Dialer
	url    string
	log    zerolog.Logger
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

// NewVolcengineTTSClient 创建火山引擎TTS客户端
func NewVolcengineTTSClient(config *speech.SpeechConfig, log zerolog.Logger) *VolcengineTTSClient {
	return &VolcengineTTSClient{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		url:    resolveEndpoint(config, volcengineTTSPath),
		log:    log,
	}
}

type volcengineTTSRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string                   `json:"speaker"`
		Text        string                   `json:"text"`
		AudioParams volcengineTTSAudioParams `json:"audio_params"`
		Additions   string                   `json:"additions,omitempty"`
		Language    string                   `json:"language,omitempty"`
	} `json:"req_params"`
}

type volcengineTTSAudioParams struct {
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
	EnableTimestamp bool    `json:"enable_timestamp"`
	SpeedRatio      float32 `json:"speed_ratio,omitempty"`
	VolumeRatio     float32 `json:"volume_ratio,omitempty"`
}

// OutputFormat 返回进程内固定的输出格式（wav 或 mp3）。
func (c *VolcengineTTSClient) OutputFormat() string {
	switch strings.ToLower(strings.TrimSpace(c.config.TTSFormat)) {
	case "mp3":
		return "mp3"
	default:
		return defaultTTSFormat
	}
}

// SampleRate 返回固定采样率。
func (c *VolcengineTTSClient) SampleRate() int {
	if c.config.TTSSampleRate > 0 {
		return c.config.TTSSampleRate
	}
	return defaultTTSSampleRate
}

// wireEncoding wav 输出时向服务端请求裸 PCM，本地补 RIFF 头
func (c *VolcengineTTSClient) wireEncoding() string {
	if c.OutputFormat() == "wav" {
		return "pcm"
	}
	return c.OutputFormat()
}

// Synthesize 合成整段文本，返回固定格式的音频。
func (c *VolcengineTTSClient) Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("TTS text is empty")
	}

	appKey, accessKey, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withRequestTimeout(ctx, c.config)
	defer cancel()

	speaker := firstNonEmpty(req.Voice, c.config.TTSVoice)
	var mismatchErr error

	for idx, resourceID := range resolveTTSResourceCandidates(speaker) {
		resp, attemptErr := c.synthesizeWithResource(ctx, req, appKey, accessKey, speaker, resourceID)
		if attemptErr == nil {
			if idx > 0 {
				c.log.Info().Str("voice", speaker).Str("resource", resourceID).Msg("tts: fallback resource succeeded")
			}
			return resp, nil
		}

		if !isResourceMismatchError(attemptErr) {
			return nil, attemptErr
		}
		c.log.Warn().Err(attemptErr).Str("voice", speaker).Str("resource", resourceID).Msg("tts: resource mismatch")
		mismatchErr = attemptErr
	}

	if mismatchErr != nil {
		return nil, mismatchErr
	}
	return nil, fmt.Errorf("TTS synthesis failed: no compatible resource id for voice %q", speaker)
}

func (c *VolcengineTTSClient) synthesizeWithResource(
	ctx context.Context,
	req *speech.TTSRequest,
	appKey, accessKey, speaker, resourceID string,
) (*speech.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", appKey)
	header.Set("X-Api-Access-Key", accessKey)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			c.log.Debug().Str("logid", logid).Str("session_id", req.SessionID).Msg("tts connected")
		}
	}

	ttsReq, userUID := c.buildTTSRequest(req, speaker)

	payloadData, err := json.Marshal(ttsReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}

	messageBytes, err := EncodeMessage(CreateFullClientRequest(payloadData, NoCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, messageBytes); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	// 读阻塞期间响应取消
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var (
		audioBuffer bytes.Buffer
		reqID       string
		duration    int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("TTS error message decode failed: %w", err)
			}
			return nil, fmt.Errorf("TTS error: %s", string(payload))

		case AudioOnlyServerResponse:
			chunk, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress audio chunk: %w", err)
			}
			audioBuffer.Write(chunk)

		case FullServerResponse:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress TTS response payload: %w", err)
			}

			var serverResp ttsServerMessage
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &serverResp); err != nil {
					c.log.Warn().Err(err).Msg("tts: failed to unmarshal response payload")
				} else {
					if serverResp.Code != 0 && serverResp.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", serverResp.Code, serverResp.Message)
					}
					if serverResp.ReqID != "" {
						reqID = serverResp.ReqID
					}
					if parsed, err := parseDuration(serverResp.Addition.Duration); err == nil && parsed > 0 {
						duration = parsed
					}
					if serverResp.Data != "" {
						chunk, err := decodeBase64Audio(serverResp.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audioBuffer.Write(chunk)
					}
				}
			}

			finalizedByEvent := msg.Header.MessageFlags == WithEvent && msg.EventType == EventTypeSessionFinished
			finalizedBySequence := msg.IsLastPacket() || serverResp.Sequence < 0
			if !finalizedByEvent && !finalizedBySequence {
				continue
			}

			if audioBuffer.Len() == 0 {
				return nil, fmt.Errorf("TTS audio is empty")
			}
			if reqID == "" {
				reqID = connectID
			}

			audio := audioBuffer.Bytes()
			if c.OutputFormat() == "wav" {
				audio = WrapPCM(audio, c.SampleRate(), 1, 16)
			}
			return &speech.TTSResponse{
				SessionID:  firstNonEmpty(req.SessionID, userUID),
				AudioData:  audio,
				Duration:   duration,
				Format:     c.OutputFormat(),
				SampleRate: c.SampleRate(),
				RequestID:  reqID,
				CreatedAt:  time.Now(),
			}, nil

		default:
			c.log.Debug().Int("type", int(msg.Header.MessageType)).Msg("tts: unexpected message type")
		}
	}
}

// buildTTSRequest 构建符合火山引擎API格式的TTS请求
func (c *VolcengineTTSClient) buildTTSRequest(req *speech.TTSRequest, speaker string) (*volcengineTTSRequest, string) {
	ttsReq := &volcengineTTSRequest{}

	userUID := firstNonEmpty(req.SessionID)
	if userUID == "" {
		userUID = uuid.NewString()
	}
	ttsReq.User.UID = userUID

	ttsReq.ReqParams.Speaker = speaker
	ttsReq.ReqParams.Text = req.Text
	ttsReq.ReqParams.AudioParams.Format = c.wireEncoding()
	ttsReq.ReqParams.AudioParams.SampleRate = c.SampleRate()
	ttsReq.ReqParams.AudioParams.EnableTimestamp = true

	speed := req.Speed
	if speed <= 0 && c.config.TTSSpeed > 0 {
		speed = c.config.TTSSpeed
	}
	if speed > 0 && speed != 1.0 {
		ttsReq.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 && c.config.TTSVolume > 0 {
		volume = c.config.TTSVolume
	}
	if volume > 0 && volume != 1.0 {
		ttsReq.ReqParams.AudioParams.VolumeRatio = volume
	}

	if language := firstNonEmpty(req.Language, c.config.TTSLanguage); language != "" {
		ttsReq.ReqParams.Language = language
	}

	ttsReq.ReqParams.Additions = buildAdditionsPayload()
	return ttsReq, userUID
}

func buildAdditionsPayload() string {
	data, err := json.Marshal(map[string]any{
		"disable_markdown_filter": false,
	})
	if err != nil {
		return "{}"
	}
	return string(data)
}

func resolveTTSResourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if voice == "" {
		return []string{defaultResource, seedResource}
	}

	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	seedHints := []string{
		"bigtts",
		"seed",
		"megatts",
		"uranus",
		"venus",
		"jupiter",
		"saturn",
		"neptune",
		"mercury",
		"pluto",
		"mars",
	}

	for _, hint := range seedHints {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}

	return []string{defaultResource, seedResource}
}

func isResourceMismatchError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}

func decodeBase64Audio(base64Data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Data)
}

// parseDuration 解析时长字符串（毫秒）
func parseDuration(durationStr string) (int64, error) {
	if durationStr == "" {
		return 0, nil
	}
	return strconv.ParseInt(durationStr, 10, 64)
}
