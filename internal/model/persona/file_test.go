package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFileEmptyPathReturnsSeed(t *testing.T) {
	p, err := LoadFile("")
	require.NoError(t, err)
	require.Equal(t, Seed(), p)
}

func TestLoadFileOverridesSelectedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persona.yaml")
	content := `
name: Elile
tone: calm
voice_id: ar_female_voice
guidelines:
  - Keep replies short.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)

	seed := Seed()
	require.Equal(t, "Elile", p.Name)
	require.Equal(t, "calm", p.Tone)
	require.Equal(t, "ar_female_voice", p.VoiceID)
	require.Equal(t, []string{"Keep replies short."}, p.Guidelines)
	require.Equal(t, seed.SafetyProtocol, p.SafetyProtocol)
	require.Equal(t, DefaultApology, p.ApologyText())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("guidelines: [unclosed"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
}
