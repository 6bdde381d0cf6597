package emotion

import "testing"

func TestAnalyzeArabicSadness(t *testing.T) {
	decision := Analyze("أشعر بالحزن")
	if decision.Label != Sadness {
		t.Fatalf("expected sadness, got %s", decision.Label)
	}
	if decision.Confidence <= 0 || decision.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", decision.Confidence)
	}
}

func TestAnalyzeEnglishKeywords(t *testing.T) {
	cases := map[string]Label{
		"I feel so lonely tonight":   Sadness,
		"I'm really anxious about it": Nervousness,
		"thank you for listening":     Gratitude,
		"I am scared of the exam":     Fear,
	}
	for text, want := range cases {
		if got := Analyze(text).Label; got != want {
			t.Errorf("Analyze(%q) = %s, want %s", text, got, want)
		}
	}
}

func TestAnalyzeNeutralWhenNoKeyword(t *testing.T) {
	for _, text := range []string{"", "   ", "وين السوق؟", "what time is it"} {
		decision := Analyze(text)
		if decision.Label != Neutral || decision.Score != 0 {
			t.Fatalf("Analyze(%q) = %+v, want neutral", text, decision)
		}
	}
}

func TestAnalyzeTieBreakIsDeterministic(t *testing.T) {
	// one sadness keyword and one joy keyword
	text := "sad but glad"
	first := Analyze(text)
	for i := 0; i < 20; i++ {
		if got := Analyze(text); got.Label != first.Label {
			t.Fatalf("non-deterministic label: %s vs %s", got.Label, first.Label)
		}
	}
	if first.Label != Sadness {
		t.Fatalf("expected sadness to win the tie, got %s", first.Label)
	}
}

func TestAnalyzeExclamationsSignalExcitement(t *testing.T) {
	if got := Analyze("يلا!!!").Label; got != Excitement {
		t.Fatalf("expected excitement, got %s", got)
	}
}
