package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondError(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, http.StatusBadRequest, "bad input")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "bad input" {
		t.Fatalf("body = %v", body)
	}
}

func TestRespondAudio(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondAudio(rr, "audio/wav", []byte("RIFF"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "audio/wav" || rr.Header().Get("Content-Length") != "4" {
		t.Fatalf("headers = %v", rr.Header())
	}
	if rr.Body.String() != "RIFF" {
		t.Fatalf("body = %q", rr.Body.String())
	}
}
