package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	speechmodel "github.com/zhouzirui/elile/backend/internal/model/speech"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	AI          AIConfig
	Fallback    FallbackConfig
	Speech      SpeechConfig
	Emotion     EmotionConfig
	History     HistoryConfig
	Turn        TurnConfig
	PersonaFile string
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	fallback, err := loadFallbackConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	emotion, err := loadEmotionConfig()
	if err != nil {
		return nil, err
	}

	history, err := loadHistoryConfig()
	if err != nil {
		return nil, err
	}

	turn, err := loadTurnConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:      server,
		Log:         logCfg,
		AI:          ai,
		Fallback:    fallback,
		Speech:      speech,
		Emotion:     emotion,
		History:     history,
		Turn:        turn,
		PersonaFile: strings.TrimSpace(os.Getenv("PERSONA_FILE")),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
	// CORSOrigins 允许跨域访问的来源，"*" 表示全部放行。
	CORSOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

// splitList 解析逗号分隔的列表，忽略空项。
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig() (LogConfig, error) {
	pretty, err := parseBoolEnv("LOG_PRETTY", false)
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Pretty: pretty,
	}, nil
}

// AIConfig 描述主生成模型（Ark）的配置。采样参数在进程内固定。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		def := DefaultTemperature
		temperature = &def
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		def := DefaultMaxTokens
		maxTokens = &def
	}

	modelName := strings.TrimSpace(os.Getenv("ARK_MODEL"))
	if modelName == "" {
		modelName = strings.TrimSpace(os.Getenv("Model"))
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       modelName,
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

const (
	// DefaultTemperature 两个生成引擎共用的采样温度。
	DefaultTemperature = 0.7
	// DefaultMaxTokens 单次回复的最大 token 数。
	DefaultMaxTokens = 200
)

// FallbackConfig 描述备用生成模型（Gemini）的配置。
type FallbackConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
}

// Enabled 表示是否配置了 Gemini 密钥。
func (c FallbackConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadFallbackConfig() (FallbackConfig, error) {
	temperature, err := parseOptionalFloat32Env("GEMINI_TEMPERATURE")
	if err != nil {
		return FallbackConfig{}, err
	}
	temp := float32(DefaultTemperature)
	if temperature != nil {
		temp = *temperature
	}

	maxTokens, err := parseOptionalIntEnv("GEMINI_MAX_TOKENS")
	if err != nil {
		return FallbackConfig{}, err
	}
	limit := int32(DefaultMaxTokens)
	if maxTokens != nil {
		limit = int32(*maxTokens)
	}

	key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GOOGLE_AI_STUDIO_API_KEY"))
	}

	return FallbackConfig{
		APIKey:          key,
		Model:           getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		Temperature:     temp,
		MaxOutputTokens: limit,
	}, nil
}

// SpeechConfig 描述语音服务相关配置
type SpeechConfig struct {
	Recognizer    string
	AppID         string
	AccessToken   string
	APIKey        string
	BaseURL       string
	OpenAIKey     string
	OpenAIBaseURL string
	WhisperModel  string
	ASRModel      string
	ASRLanguage   string
	ASRPrompt     string
	TTSVoice      string
	TTSSpeed      float32
	TTSVolume     float32
	TTSLanguage   string
	TTSFormat     string
	TTSSampleRate int
	Timeout       int
	Enabled       bool
	// ASRConcurrent 选择火山 ASR 并发版资源
	ASRConcurrent bool
}

// SynthesisEnabled 表示火山引擎 TTS 凭证是否齐全。
func (c SpeechConfig) SynthesisEnabled() bool {
	return c.AppID != "" && (c.AccessToken != "" || c.APIKey != "")
}

// ModelConfig 转换为语音服务使用的配置结构。
func (c SpeechConfig) ModelConfig() *speechmodel.SpeechConfig {
	cfg := &speechmodel.SpeechConfig{
		Recognizer:    c.Recognizer,
		AppID:         c.AppID,
		AccessToken:   c.AccessToken,
		APIKey:        c.APIKey,
		BaseURL:       c.BaseURL,
		OpenAIKey:     c.OpenAIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
		WhisperModel:  c.WhisperModel,
		ASRModel:      c.ASRModel,
		ASRLanguage:   c.ASRLanguage,
		ASRPrompt:     c.ASRPrompt,
		TTSVoice:      c.TTSVoice,
		TTSSpeed:      c.TTSSpeed,
		TTSVolume:     c.TTSVolume,
		TTSLanguage:   c.TTSLanguage,
		TTSFormat:     c.TTSFormat,
		TTSSampleRate: c.TTSSampleRate,
		Timeout:       c.Timeout,
	}
	cfg.ConcurrentMode = c.ASRConcurrent
	return cfg
}

const (
	RecognizerVolcengine = "volcengine"
	RecognizerWhisper    = "whisper"
)

// DefaultASRPrompt 告诉 Whisper 这是阿曼方言的对话。
const DefaultASRPrompt = "هذه محادثة باللهجة العمانية."

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30 // 默认30秒
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0)
	if speed != nil {
		ttsSpeed = *speed
	}

	volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsVolume := float32(1.0)
	if volume != nil {
		ttsVolume = *volume
	}

	rate, err := parseOptionalIntEnv("SPEECH_TTS_SAMPLE_RATE")
	if err != nil {
		return SpeechConfig{}, err
	}
	sampleRate := 16000
	if rate != nil {
		sampleRate = *rate
	}

	format := strings.ToLower(getEnvOrDefault("SPEECH_TTS_FORMAT", "wav"))
	if format != "wav" && format != "mp3" {
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_TTS_FORMAT value %q: want wav or mp3", format)
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))

	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if accessToken == "" {
		accessToken = apiKey
	}

	// 如果没有专门的语音配置，尝试使用AI配置
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		apiKey = accessToken
	}

	concurrent, err := parseBoolEnv("SPEECH_ASR_CONCURRENT", false)
	if err != nil {
		return SpeechConfig{}, err
	}

	openAIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))

	recognizer := strings.ToLower(strings.TrimSpace(os.Getenv("SPEECH_RECOGNIZER")))
	if recognizer == "" {
		recognizer = RecognizerVolcengine
		if openAIKey != "" {
			recognizer = RecognizerWhisper
		}
	}
	if recognizer != RecognizerVolcengine && recognizer != RecognizerWhisper {
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_RECOGNIZER value %q", recognizer)
	}

	enabled := appID != "" && accessToken != ""
	if recognizer == RecognizerWhisper {
		enabled = enabled && openAIKey != ""
	}

	return SpeechConfig{
		Recognizer:    recognizer,
		AppID:         appID,
		AccessToken:   accessToken,
		APIKey:        apiKey,
		BaseURL:       getEnvOrDefault("SPEECH_BASE_URL", ""),
		OpenAIKey:     openAIKey,
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", ""),
		WhisperModel:  getEnvOrDefault("WHISPER_MODEL", "whisper-1"),
		ASRModel:      getEnvOrDefault("SPEECH_ASR_MODEL", ""),
		ASRLanguage:   getEnvOrDefault("SPEECH_ASR_LANGUAGE", "ar"),
		ASRPrompt:     getEnvOrDefault("SPEECH_ASR_PROMPT", DefaultASRPrompt),
		TTSVoice:      getEnvOrDefault("SPEECH_TTS_VOICE", ""),
		TTSSpeed:      ttsSpeed,
		TTSVolume:     ttsVolume,
		TTSLanguage:   getEnvOrDefault("SPEECH_TTS_LANGUAGE", "ar"),
		TTSFormat:     format,
		TTSSampleRate: sampleRate,
		Timeout:       timeoutSeconds,
		Enabled:       enabled,
		ASRConcurrent: concurrent,
	}, nil
}

const (
	ClassifierHuggingFace = "huggingface"
	ClassifierLLM         = "llm"
	ClassifierKeywords    = "keywords"
)

// EmotionConfig 描述情绪分类器的选择。
type EmotionConfig struct {
	Classifier string
	Model      string
	APIURL     string
	APIToken   string
	Timeout    time.Duration
}

func loadEmotionConfig() (EmotionConfig, error) {
	classifier := strings.ToLower(getEnvOrDefault("EMOTION_CLASSIFIER", ClassifierHuggingFace))
	switch classifier {
	case ClassifierHuggingFace, ClassifierLLM, ClassifierKeywords:
	default:
		return EmotionConfig{}, fmt.Errorf("invalid EMOTION_CLASSIFIER value %q", classifier)
	}

	timeout, err := parseDurationEnv("EMOTION_TIMEOUT", 10*time.Second)
	if err != nil {
		return EmotionConfig{}, err
	}

	return EmotionConfig{
		Classifier: classifier,
		Model:      getEnvOrDefault("EMOTION_MODEL", "bhadresh-savani/bert-base-go-emotion"),
		APIURL:     getEnvOrDefault("EMOTION_API_URL", "https://api-inference.huggingface.co/models"),
		APIToken:   strings.TrimSpace(os.Getenv("HF_API_TOKEN")),
		Timeout:    timeout,
	}, nil
}

const (
	HistoryBackendMemory   = "memory"
	HistoryBackendPostgres = "postgres"
)

// HistoryConfig 描述对话历史存储。
type HistoryConfig struct {
	Backend     string
	DatabaseURL string
	Window      int
}

func loadHistoryConfig() (HistoryConfig, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("HISTORY_BACKEND")))
	if backend == "" {
		backend = HistoryBackendMemory
		if dsn != "" {
			backend = HistoryBackendPostgres
		}
	}
	if backend != HistoryBackendMemory && backend != HistoryBackendPostgres {
		return HistoryConfig{}, fmt.Errorf("invalid HISTORY_BACKEND value %q", backend)
	}
	if backend == HistoryBackendPostgres && dsn == "" {
		return HistoryConfig{}, fmt.Errorf("HISTORY_BACKEND=postgres requires DATABASE_URL")
	}

	window := 10
	if override, err := parseOptionalIntEnv("HISTORY_WINDOW"); err != nil {
		return HistoryConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return HistoryConfig{}, fmt.Errorf("invalid HISTORY_WINDOW value %d", *override)
		}
		window = *override
	}

	return HistoryConfig{Backend: backend, DatabaseURL: dsn, Window: window}, nil
}

// TurnConfig 描述单轮对话流水线。
type TurnConfig struct {
	LatencyBudget time.Duration
	TempDir       string
	MaxAudioBytes int64

	// GenerationTimeout 限制单个生成引擎的一次调用，超时即切换到下一个引擎
	GenerationTimeout time.Duration
}

func loadTurnConfig() (TurnConfig, error) {
	budget, err := parseDurationEnv("TURN_LATENCY_BUDGET", 20*time.Second)
	if err != nil {
		return TurnConfig{}, err
	}

	generation, err := parseDurationEnv("GENERATION_TIMEOUT", 8*time.Second)
	if err != nil {
		return TurnConfig{}, err
	}

	maxBytes := int64(32 << 20)
	if override, err := parseOptionalIntEnv("TURN_MAX_AUDIO_BYTES"); err != nil {
		return TurnConfig{}, err
	} else if override != nil && *override > 0 {
		maxBytes = int64(*override)
	}

	return TurnConfig{
		LatencyBudget: budget,
		TempDir:       strings.TrimSpace(os.Getenv("TURN_TEMP_DIR")),
		MaxAudioBytes: maxBytes,

		GenerationTimeout: generation,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationEnv 同时接受 "20s" 这样的时长和纯数字秒数。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
