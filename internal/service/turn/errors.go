package turn

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a turn failure for the transport layer.
type Kind int

const (
	// KindInput is a problem with the caller's request.
	KindInput Kind = iota + 1
	// KindServer is a terminal fault inside the pipeline.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Stage names the pipeline step that failed.
type Stage string

const (
	StageValidate     Stage = "validate"
	StageStage        Stage = "stage"
	StageTranscribe   Stage = "transcribe"
	StageHistoryRead  Stage = "history_read"
	StageHistoryWrite Stage = "history_write"
	StageSynthesize   Stage = "synthesize"
	StagePanic        Stage = "panic"
)

var (
	ErrSessionRequired    = errors.New("session id is required")
	ErrEmptyAudio         = errors.New("audio is empty")
	ErrEmptyTranscription = errors.New("could not understand audio or the speech was empty")
	ErrStaging            = errors.New("failed to stage audio")
	ErrHistoryWrite       = errors.New("failed to persist turn")
	ErrSynthesis          = errors.New("failed to synthesize reply")
)

// PublicServerMessage is the only detail a client sees for a server fault.
const PublicServerMessage = "An internal server error occurred."

// Error is the single failure type returned by HandleTurn.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func inputError(stage Stage, err error) *Error {
	return &Error{Kind: KindInput, Stage: stage, Err: err}
}

// serverError joins the stage sentinel with the underlying cause.
func serverError(stage Stage, sentinel, cause error) *Error {
	if cause == nil {
		return &Error{Kind: KindServer, Stage: stage, Err: sentinel}
	}
	return &Error{Kind: KindServer, Stage: stage, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("turn %s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	if e.Kind == KindInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Public returns a message that is safe to send to clients.
func (e *Error) Public() string {
	if e.Kind != KindInput {
		return PublicServerMessage
	}
	switch {
	case errors.Is(e.Err, ErrEmptyTranscription):
		return "Could not understand audio or the speech was empty."
	case errors.Is(e.Err, ErrSessionRequired):
		return "session_id is required."
	case errors.Is(e.Err, ErrEmptyAudio):
		return "audio_file is empty."
	default:
		return "Invalid request."
	}
}
