// Package stt defines the Recognizer interface for speech-to-text backends.
//
// A Recognizer wraps one recognition service (a hosted API or a local engine)
// and turns a decoded [audio.Clip] into text with exactly one request. It
// never retries and never logs; callers decide how failures are reported.
//
// Failures fall into two classes that callers can tell apart:
//
//   - [ErrUnknownValue]: the service processed the audio but could not map it
//     to text.
//   - [*RequestError]: the exchange itself failed (transport error, timeout,
//     rejected credentials, malformed response).
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/voicerec/pkg/audio"
)

// ErrUnknownValue is returned when the service received the audio but could
// not recognise any speech in it.
var ErrUnknownValue = errors.New("stt: speech could not be understood")

// RequestError reports a failed exchange with a recognition service.
type RequestError struct {
	// Provider names the backend that failed (e.g. "wit-ai").
	Provider string

	// StatusCode is the HTTP status returned by the service, or 0 when the
	// failure happened before a response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: request failed with HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error { return e.Err }

// NewRequestError is shorthand for constructing a [*RequestError].
func NewRequestError(provider string, status int, err error) *RequestError {
	return &RequestError{Provider: provider, StatusCode: status, Err: err}
}

// Recognizer is the abstraction over any speech-to-text backend.
type Recognizer interface {
	// Recognize transcribes clip and returns the recognised text. It returns
	// [ErrUnknownValue] when no speech could be recognised and a
	// [*RequestError] when the service could not be reached or rejected the
	// request. A nil error always comes with non-empty text.
	Recognize(ctx context.Context, clip *audio.Clip) (string, error)
}

// RecognizerFunc adapts an ordinary function to the [Recognizer] interface.
type RecognizerFunc func(ctx context.Context, clip *audio.Clip) (string, error)

// Recognize calls f(ctx, clip).
func (f RecognizerFunc) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	return f(ctx, clip)
}
