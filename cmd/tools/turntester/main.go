// Command turntester runs the voice pipeline, or one of its stages, against
// local audio files using the same configuration as the API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/elile/backend/internal/app"
	"github.com/zhouzirui/elile/backend/internal/config"
	"github.com/zhouzirui/elile/backend/internal/logger"
	"github.com/zhouzirui/elile/backend/internal/service/turn"
)

type options struct {
	envFile string
	timeout time.Duration
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "turntester",
		Short:        "手动测试语音识别、语音合成和完整对话轮次",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "环境变量文件路径")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "单次命令超时时间")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(newTurnCmd(opts), newASRCmd(opts), newTTSCmd(opts), newHistoryCmd(opts))
	return root
}

func (o *options) logger() zerolog.Logger {
	level := "info"
	if o.verbose {
		level = "debug"
	}
	return logger.New(logger.Config{Level: level, Pretty: true, Output: os.Stderr})
}

// build 读取 .env 与配置并组装全部服务，.env 缺失时只记录警告
func (o *options) build(ctx context.Context) (*app.App, zerolog.Logger, error) {
	log := o.logger()
	if err := godotenv.Load(o.envFile); err != nil {
		log.Warn().Err(err).Str("path", o.envFile).Msg("无法加载 .env，改用系统环境变量")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, log, fmt.Errorf("配置加载失败: %w", err)
	}
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return nil, log, err
	}
	return a, log, nil
}

func newSessionID() string {
	return fmt.Sprintf("manual-%d", time.Now().UnixNano())
}

func newTurnCmd(opts *options) *cobra.Command {
	var session, audioPath, out string

	cmd := &cobra.Command{
		Use:   "turn",
		Short: "用本地音频跑一轮完整对话并保存回复音频",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			a, log, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			audio, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("打开音频文件失败: %w", err)
			}
			if session == "" {
				session = newSessionID()
			}

			reply, err := a.Orchestrator.HandleTurn(ctx, session, audio, formatFromPath(audioPath))
			if err != nil {
				var turnErr *turn.Error
				if errors.As(err, &turnErr) {
					return fmt.Errorf("对话轮次失败 (%d, stage=%s): %w", turnErr.Status(), turnErr.Stage, err)
				}
				return err
			}

			if out == "" {
				out = fmt.Sprintf("reply-%s.%s", reply.TurnID, reply.Format)
			}
			if err := os.WriteFile(out, reply.Audio, 0o644); err != nil {
				return fmt.Errorf("写入音频文件失败: %w", err)
			}

			log.Info().
				Str("session_id", session).
				Str("turn_id", reply.TurnID).
				Str("emotion", reply.Emotion).
				Dur("elapsed", reply.Elapsed).
				Str("path", out).
				Msg("对话轮次完成")
			return printTurn(cmd.OutOrStdout(), reply)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "会话 ID，留空则自动生成")
	cmd.Flags().StringVar(&audioPath, "audio", "", "输入音频文件路径")
	cmd.Flags().StringVarP(&out, "out", "o", "", "回复音频的保存路径")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func newASRCmd(opts *options) *cobra.Command {
	var audioPath, format string

	cmd := &cobra.Command{
		Use:   "asr",
		Short: "只做语音识别",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			a, log, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if format == "" {
				format = formatFromPath(audioPath)
			}
			log.Info().Str("recognizer", a.Speech.RecognizerName()).Str("format", format).Msg("开始进行 ASR 测试")

			text := a.Speech.Transcribe(ctx, newSessionID(), audioPath, format)
			if text == "" {
				return fmt.Errorf("未识别到任何文本")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&audioPath, "audio", "", "输入音频文件路径")
	cmd.Flags().StringVar(&format, "format", "", "输入音频格式，默认取文件扩展名")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func newTTSCmd(opts *options) *cobra.Command {
	var text, out string

	cmd := &cobra.Command{
		Use:   "tts",
		Short: "只做语音合成",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--text 不能为空")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			a, log, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Speech.Synthesize(ctx, newSessionID(), text)
			if err != nil {
				return fmt.Errorf("TTS 调用失败: %w", err)
			}

			if out == "" {
				out = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), resp.Format)
			}
			if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
				return fmt.Errorf("写入音频文件失败: %w", err)
			}
			log.Info().Str("path", out).Int64("duration_ms", resp.Duration).Int("bytes", len(resp.AudioData)).Msg("TTS 合成成功")
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "待合成文本")
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出音频文件路径，默认根据格式自动生成")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		session string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "打印会话最近的对话上下文",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			a, _, err := opts.build(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			messages, err := a.History.Recent(ctx, session, limit)
			if err != nil {
				return fmt.Errorf("读取历史失败: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), messages)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "会话 ID")
	cmd.Flags().IntVar(&limit, "limit", turn.DefaultWindow, "返回的轮次数量")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func printTurn(w io.Writer, reply *turn.Reply) error {
	return writeJSON(w, map[string]any{
		"turnId":     reply.TurnID,
		"transcript": reply.Transcript,
		"emotion":    reply.Emotion,
		"reply":      reply.Text,
		"format":     reply.Format,
		"elapsedMs":  reply.Elapsed.Milliseconds(),
	})
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

func formatFromPath(path string) string {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return "wav"
	}
	return format
}
