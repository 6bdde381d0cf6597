package ai

import (
	"strings"
	"testing"

	"github.com/zhouzirui/elile/backend/internal/model/persona"
)

func TestBuildSystemPromptFromSeed(t *testing.T) {
	p := persona.Seed()
	got := BuildSystemPrompt(p)

	for _, want := range []string{p.Name, p.Dialect, p.Guidelines[0], "(Detected Emotion:", "Safety protocol:", "9999"} {
		if !strings.Contains(got, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestBuildSystemPromptCustom(t *testing.T) {
	p := persona.Persona{SystemPrompt: "  custom prompt  ", SafetyProtocol: "call for help"}
	got := BuildSystemPrompt(p)

	if !strings.HasPrefix(got, "custom prompt") {
		t.Fatalf("prompt = %q", got)
	}
	if !strings.HasSuffix(got, "call for help") {
		t.Fatalf("safety protocol not appended: %q", got)
	}

	if got := BuildSystemPrompt(persona.Persona{SystemPrompt: "only"}); got != "only" {
		t.Fatalf("prompt without safety = %q", got)
	}
}
