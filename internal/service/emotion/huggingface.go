package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceClassifier calls a hosted text-classification model, by
// default bhadresh-savani/bert-base-go-emotion, and keeps the top label.
type HuggingFaceClassifier struct {
	c     *http.Client
	url   string
	token string
	model string
}

// NewHuggingFaceClassifier builds a client for baseURL/model.
func NewHuggingFaceClassifier(baseURL, model, token string, timeout time.Duration) *HuggingFaceClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HuggingFaceClassifier{
		c:     &http.Client{Timeout: timeout},
		url:   strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(model, "/"),
		token: token,
		model: model,
	}
}

func (h *HuggingFaceClassifier) Name() string { return "huggingface" }

type hfRequest struct {
	Inputs string `json:"inputs"`
}

type hfScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify posts text to the inference endpoint.
func (h *HuggingFaceClassifier) Classify(ctx context.Context, text string) (string, error) {
	b, _ := json.Marshal(hfRequest{Inputs: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("emotion read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("emotion %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	scores, err := decodeScores(body)
	if err != nil {
		return "", fmt.Errorf("emotion decode: %w", err)
	}
	return topLabel(scores)
}

// decodeScores accepts both [[{label,score}]] and [{label,score}].
func decodeScores(body []byte) ([]hfScore, error) {
	var nested [][]hfScore
	if err := json.Unmarshal(body, &nested); err == nil {
		var flat []hfScore
		for _, group := range nested {
			flat = append(flat, group...)
		}
		return flat, nil
	}

	var flat []hfScore
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, err
	}
	return flat, nil
}

func topLabel(scores []hfScore) (string, error) {
	if len(scores) == 0 {
		return "", fmt.Errorf("emotion: empty prediction")
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	if strings.TrimSpace(best.Label) == "" {
		return "", fmt.Errorf("emotion: prediction without label")
	}
	return best.Label, nil
}
