package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML persona definition and layers it over Seed.
// Fields left empty in the file keep their built-in values.
func LoadFile(path string) (Persona, error) {
	base := Seed()
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("read persona file: %w", err)
	}

	var override Persona
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Persona{}, fmt.Errorf("decode persona file %s: %w", path, err)
	}

	return merge(base, override), nil
}

func merge(base, override Persona) Persona {
	pick := func(dst *string, src string) {
		if s := strings.TrimSpace(src); s != "" {
			*dst = s
		}
	}

	pick(&base.ID, override.ID)
	pick(&base.Name, override.Name)
	pick(&base.Title, override.Title)
	pick(&base.Language, override.Language)
	pick(&base.Dialect, override.Dialect)
	pick(&base.Tone, override.Tone)
	pick(&base.OpeningLine, override.OpeningLine)
	pick(&base.VoiceID, override.VoiceID)
	pick(&base.Description, override.Description)
	pick(&base.SafetyProtocol, override.SafetyProtocol)
	pick(&base.SystemPrompt, override.SystemPrompt)
	pick(&base.Apology, override.Apology)
	if len(override.Guidelines) > 0 {
		base.Guidelines = append([]string(nil), override.Guidelines...)
	}
	return base
}
