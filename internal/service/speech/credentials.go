package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	speechmodel "github.com/zhouzirui/elile/backend/internal/model/speech"
)

// resolveCredentials 返回规范化后的 AppID 与 AccessToken，缺失时给出明确错误。
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("火山引擎语音配置未初始化")
	}

	appID := strings.TrimSpace(cfg.AppID)
	token := firstNonEmpty(cfg.AccessToken, cfg.APIKey)
	if appID == "" || token == "" {
		return "", "", fmt.Errorf("火山引擎语音配置缺少 AppID 或 AccessToken")
	}
	return appID, token, nil
}

const defaultVolcengineHost = "wss://openspeech.bytedance.com"

// resolveEndpoint 用 BaseURL 替换默认主机，保留接口路径
func resolveEndpoint(cfg *speechmodel.SpeechConfig, path string) string {
	base := defaultVolcengineHost
	if cfg != nil {
		if override := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); override != "" {
			base = override
		}
	}
	return base + path
}

// withRequestTimeout 按 Timeout（秒）限制一次完整的识别或合成，<=0 表示不限制
func withRequestTimeout(ctx context.Context, cfg *speechmodel.SpeechConfig) (context.Context, context.CancelFunc) {
	if cfg == nil || cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
}
