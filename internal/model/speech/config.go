package speech

// SpeechConfig 语音服务配置
type SpeechConfig struct {
	// 识别后端：volcengine 或 whisper
	Recognizer string `json:"recognizer"`

	// Volcengine 配置
	AppID          string `json:"appId"`            // 火山引擎 APP ID
	AccessToken    string `json:"accessToken"`      // 火山引擎 Access Token
	APIKey         string `json:"apiKey,omitempty"` // 兼容旧配置的 API Key
	BaseURL        string `json:"baseUrl"`          // 覆盖 wss://openspeech.bytedance.com，便于测试或私有化部署
	ConcurrentMode bool   `json:"concurrentMode"` // ASR并发版（false为小时版）

	// Whisper 配置
	OpenAIKey     string `json:"-"`
	OpenAIBaseURL string `json:"openaiBaseUrl,omitempty"`
	WhisperModel  string `json:"whisperModel"`

	// ASR 配置
	ASRModel    string `json:"asrModel"`
	ASRLanguage string `json:"asrLanguage"`
	ASRPrompt   string `json:"asrPrompt,omitempty"` // 方言提示词，仅 Whisper 使用

	// TTS 配置，输出格式与采样率在进程内固定
	TTSVoice      string  `json:"ttsVoice"`
	TTSSpeed      float32 `json:"ttsSpeed"`
	TTSVolume     float32 `json:"ttsVolume"`
	TTSLanguage   string  `json:"ttsLanguage"`
	TTSFormat     string  `json:"ttsFormat"`     // wav 或 mp3
	TTSSampleRate int     `json:"ttsSampleRate"` // Hz

	Timeout int `json:"timeout"` // seconds
}
