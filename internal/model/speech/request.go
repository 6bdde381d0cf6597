package speech

import (
	"io"
)

// ASRRequest 语音识别请求
type ASRRequest struct {
	SessionID string    `json:"sessionId"`
	AudioData io.Reader `json:"-"`
	FilePath  string    `json:"-"`        // 暂存文件路径，同时用作上传文件名
	Format    string    `json:"format"`   // wav, mp3, webm, etc.
	Language  string    `json:"language"` // ar, zh-CN, en-US, etc.
}

// TTSRequest 语音合成请求
type TTSRequest struct {
	SessionID  string  `json:"sessionId"`
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Speed      float32 `json:"speed"`  // 语速倍率 0.5-2.0
	Volume     float32 `json:"volume"` // 音量 0.0-1.0
	Format     string  `json:"format"` // wav, mp3, pcm
	SampleRate int     `json:"sampleRate"`
	Language   string  `json:"language"`
}
