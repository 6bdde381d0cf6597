package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/elile/backend/internal/service/turn"
)

func TestFormatFromPath(t *testing.T) {
	require.Equal(t, "mp3", formatFromPath("/tmp/a.MP3"))
	require.Equal(t, "webm", formatFromPath("clip.webm"))
	require.Equal(t, "wav", formatFromPath("noext"))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"asr", "tts", "turn", "history"} {
		require.True(t, names[want], "missing subcommand %s", want)
	}
	require.NotNil(t, root.PersistentFlags().Lookup("env"))
}

func TestTurnRequiresAudioFlag(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"turn"})

	err := root.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "audio")
}

func TestPrintTurn(t *testing.T) {
	var buf bytes.Buffer
	err := printTurn(&buf, &turn.Reply{
		TurnID:     "t1",
		Transcript: "مرحبا",
		Emotion:    "joy",
		Text:       "هلا",
		Format:     "wav",
		Elapsed:    1200 * time.Millisecond,
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	require.Equal(t, "مرحبا", payload["transcript"])
	require.EqualValues(t, 1200, payload["elapsedMs"])
}
