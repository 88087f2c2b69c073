package resilience

import (
	"context"
	"errors"
	"io"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
)

// GuardedRecognizer wraps an [stt.Recognizer] with a [CircuitBreaker].
//
// Only request failures trip the breaker: [stt.ErrUnknownValue] means the
// backend is healthy and merely heard nothing useful. Calls rejected by an
// open breaker fail with an [*stt.RequestError] wrapping [ErrCircuitOpen].
type GuardedRecognizer struct {
	name  string
	inner stt.Recognizer
	cb    *CircuitBreaker
}

// Compile-time interface assertion.
var _ stt.Recognizer = (*GuardedRecognizer)(nil)

// Guard wraps r with a breaker built from cfg. cfg.Name defaults to name and
// cfg.IsFailure defaults to [IsRecognizerFailure].
func Guard(name string, r stt.Recognizer, cfg CircuitBreakerConfig) *GuardedRecognizer {
	if cfg.Name == "" {
		cfg.Name = name
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsRecognizerFailure
	}
	return &GuardedRecognizer{name: name, inner: r, cb: NewCircuitBreaker(cfg)}
}

// IsRecognizerFailure reports whether err indicates an unhealthy backend.
// Caller cancellation is not the backend's fault either.
func IsRecognizerFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, stt.ErrUnknownValue), errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// Recognize forwards to the wrapped recognizer when the breaker allows it.
func (g *GuardedRecognizer) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	var text string
	err := g.cb.Execute(func() error {
		var err error
		text, err = g.inner.Recognize(ctx, clip)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return "", stt.NewRequestError(g.name, 0, err)
	}
	return text, err
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedRecognizer) Breaker() *CircuitBreaker { return g.cb }

// Unwrap returns the wrapped recognizer.
func (g *GuardedRecognizer) Unwrap() stt.Recognizer { return g.inner }

// Close closes the wrapped recognizer if it holds resources.
func (g *GuardedRecognizer) Close() error {
	if c, ok := g.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
