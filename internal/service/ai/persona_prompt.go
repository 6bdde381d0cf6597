package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/elile/backend/internal/model/persona"
)

// BuildSystemPrompt renders the persona into the system instruction shared by
// every generation engine. A persona with an explicit SystemPrompt uses it as is,
// with the safety protocol still appended.
func BuildSystemPrompt(p persona.Persona) string {
	var b strings.Builder

	if custom := strings.TrimSpace(p.SystemPrompt); custom != "" {
		b.WriteString(custom)
	} else {
		fmt.Fprintf(&b, "You are %s, %s.", p.Name, p.Title)
		if p.Description != "" {
			b.WriteString(" ")
			b.WriteString(p.Description)
		}

		b.WriteString("\n\nPersona:")
		fmt.Fprintf(&b, "\n- Name: %s", p.Name)
		if p.Dialect != "" {
			fmt.Fprintf(&b, "\n- Speaks: %s", p.Dialect)
		}
		if p.Tone != "" {
			fmt.Fprintf(&b, "\n- Tone: %s", p.Tone)
		}

		if len(p.Guidelines) > 0 {
			b.WriteString("\n\nGuidelines:")
			for _, g := range p.Guidelines {
				b.WriteString("\n- ")
				b.WriteString(g)
			}
		}

		b.WriteString("\n\nEach user message starts with the emotion detected in their voice, for example (Detected Emotion: sadness).")
		if p.OpeningLine != "" {
			fmt.Fprintf(&b, "\n\nOpening line for reference: %s", p.OpeningLine)
		}
	}

	if safety := strings.TrimSpace(p.SafetyProtocol); safety != "" {
		b.WriteString("\n\nSafety protocol:\n")
		b.WriteString(safety)
	}
	return b.String()
}
