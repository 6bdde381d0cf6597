package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elile/backend/internal/model/speech"
)

const volcengineASRPath = "/api/v3/sauc/bigmodel_nostream"

// VolcengineASRClient 火山引擎大模型流式识别（流式输入模式）客户端
type VolcengineASRClient struct {
	config *speech.SpeechConfig
	dialer *websocket.Dialer
	url    string
	log    zerolog.Logger

	// 每包间隔，模拟实时音频流
	chunkInterval time.Duration
}

// NewVolcengineASRClient 创建火山引擎ASR客户端
func NewVolcengineASRClient(config *speech.SpeechConfig, log zerolog.Logger) *VolcengineASRClient {
	return &VolcengineASRClient{
		config:        config,
		dialer:        &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		url:           resolveEndpoint(config, volcengineASRPath),
		log:           log,
		chunkInterval: 200 * time.Millisecond,
	}
}

func (c *VolcengineASRClient) Name() string { return "volcengine" }

type asrUtterance struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Definite  bool   `json:"definite"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string         `json:"text"`
		Utterances []asrUtterance `json:"utterances,omitempty"`
	} `json:"result,omitempty"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info,omitempty"`
}

// volcengineASRRequest 首帧 JSON 参数（按文档格式）
type volcengineASRRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user,omitempty"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

// Recognize 通过 WebSocket 发送整段音频并等待最终结果。
func (c *VolcengineASRClient) Recognize(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	ctx, cancelTimeout := withRequestTimeout(ctx, c.config)
	defer cancelTimeout()

	appID, token, err := resolveCredentials(c.config)
	if err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(req.AudioData)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio data to send")
	}

	connectID := uuid.NewString()
	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	resourceID := "volc.bigasr.sauc.duration" // 小时版
	if c.config.ConcurrentMode {
		resourceID = "volc.bigasr.sauc.concurrent" // 并发版
	}
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ASR WebSocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			c.log.Debug().Str("logid", logid).Str("session_id", req.SessionID).Msg("asr connected")
		}
	}

	payload, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	compressed, err := CompressPayload(payload, GzipCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	frame, err := EncodeMessage(CreateFullClientRequest(compressed, GzipCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("failed to send ASR request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 发送与接收并发进行，服务端提前报错时可以及时停止发送
	type result struct {
		resp *speech.ASRResponse
		err  error
	}
	recvCh := make(chan result, 1)
	go func() {
		r, err := c.receive(ctx, conn, req.SessionID, connectID)
		recvCh <- result{resp: r, err: err}
	}()

	sendCh := make(chan error, 1)
	go func() {
		sendCh <- c.sendAudio(ctx, conn, audio)
	}()

	for {
		select {
		case err := <-sendCh:
			if err != nil {
				return nil, fmt.Errorf("failed to send audio data: %w", err)
			}
			sendCh = nil
		case r := <-recvCh:
			return r.resp, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *VolcengineASRClient) buildRequest(req *speech.ASRRequest) *volcengineASRRequest {
	r := &volcengineASRRequest{}
	r.User.UID = req.SessionID

	r.Audio.Format = firstNonEmpty(req.Format, "wav")
	r.Audio.Language = firstNonEmpty(req.Language, c.config.ASRLanguage, "ar")
	r.Audio.Codec = "raw"
	r.Audio.Rate = 16000
	r.Audio.Bits = 16
	r.Audio.Channel = 1

	r.Request.ModelName = firstNonEmpty(c.config.ASRModel, "bigmodel")
	r.Request.EnableITN = true
	r.Request.EnablePunc = true
	r.Request.ShowUtterances = true
	r.Request.ResultType = "full"
	r.Request.EndWindowSize = 800
	return r
}

// sendAudio 按 200ms（16kHz/16bit/单声道 = 6400 字节）分包发送。
func (c *VolcengineASRClient) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	const chunkSize = 6400
	sequence := int32(2) // 首帧占用序号1

	for offset := 0; offset < len(audio); offset += chunkSize {
		end := min(offset+chunkSize, len(audio))
		isLast := end == len(audio)

		chunk, err := CompressPayload(audio[offset:end], GzipCompression)
		if err != nil {
			return fmt.Errorf("failed to compress audio chunk: %w", err)
		}
		frame, err := EncodeMessage(CreateAudioOnlyRequest(chunk, sequence, isLast, GzipCompression))
		if err != nil {
			return fmt.Errorf("failed to encode audio message: %w", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		sequence++

		if isLast {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.chunkInterval):
		}
	}
	return nil
}

func (c *VolcengineASRClient) receive(ctx context.Context, conn *websocket.Conn, sessionID, requestID string) (*speech.ASRResponse, error) {
	var (
		text     string
		duration int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read ASR response: %w", err)
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode ASR message: %w", err)
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("ASR error message decode failed: %w", err)
			}
			return nil, fmt.Errorf("ASR error %d: %s", msg.ErrorCode, string(payload))

		case FullServerResponse:
			payload, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress ASR payload: %w", err)
			}

			var serverResp asrServerMessage
			if err := json.Unmarshal(payload, &serverResp); err != nil {
				c.log.Warn().Err(err).Msg("asr: failed to unmarshal response")
				continue
			}
			if serverResp.Code != 0 && serverResp.Code != 20000000 {
				return nil, fmt.Errorf("ASR API error %d: %s", serverResp.Code, serverResp.Message)
			}

			candidate := serverResp.Result.Text
			if candidate == "" {
				candidate = joinUtterances(serverResp.Result.Utterances)
			}
			if candidate != "" {
				text = candidate
			}
			if serverResp.AudioInfo.Duration > 0 {
				duration = serverResp.AudioInfo.Duration
			}

			if msg.IsLastPacket() || serverResp.Sequence < 0 {
				return &speech.ASRResponse{
					SessionID:  sessionID,
					Text:       text,
					Confidence: estimateASRConfidence(text),
					Duration:   duration,
					RequestID:  requestID,
					CreatedAt:  time.Now(),
				}, nil
			}
		}
		// 其他类型（如音频ACK）忽略
	}
}

func joinUtterances(utterances []asrUtterance) string {
	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func estimateASRConfidence(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return 0.95
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
