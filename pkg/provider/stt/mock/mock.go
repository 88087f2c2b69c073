// Package mock provides test doubles for the stt package interfaces.
//
// Use Recognizer to script a transcript or error and to inspect which clips
// were submitted.
//
// Example:
//
//	r := &mock.Recognizer{Text: "turn on the lights"}
//	text, err := r.Recognize(ctx, clip)
//	_ = r.CallCount() // 1
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
)

// RecognizeCall records a single invocation of Recognizer.Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// Clip is the clip passed to Recognize.
	Clip *audio.Clip
}

// Recognizer is a mock implementation of stt.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Text is returned from Recognize when Err is nil.
	Text string

	// Err, if non-nil, is returned as the error from Recognize.
	Err error

	// PanicValue, if non-nil, makes Recognize panic with this value.
	PanicValue any

	// Closed reports whether Close has been called.
	Closed bool

	// Calls records every call to Recognize.
	Calls []RecognizeCall
}

// Recognize records the call and returns Text, Err.
func (r *Recognizer) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, RecognizeCall{Ctx: ctx, Clip: clip})
	text, err, p := r.Text, r.Err, r.PanicValue
	r.mu.Unlock()
	if p != nil {
		panic(p)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// CallCount returns the number of Recognize calls. Thread-safe.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// Close marks the recognizer as closed.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	return nil
}

// Reset clears all recorded calls. Thread-safe.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)
