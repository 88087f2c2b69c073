// Package hook adapts the transcription dispatcher to the host assistant's
// voice-recognition hook.
//
// The host hands over a [Record] carrying the captured utterance in
// input_audio.audio. [Handler.Handle] transcribes it with the configured
// active provider and, on success only, fills in input_text. The same
// contract is served over HTTP and WebSocket by [Handler.Register].
package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/voicerec/internal/observe"
)

// InputAudio is the audio part of a hook record.
type InputAudio struct {
	// Audio is the recorded utterance in a container format (WAV, AIFF,
	// FLAC). JSON carries it base64-encoded.
	Audio []byte `json:"audio,omitempty"`
}

// Record is the data record exchanged with the host.
type Record struct {
	InputAudio InputAudio `json:"input_audio"`

	// InputText is set only when transcription succeeded.
	InputText *string `json:"input_text,omitempty"`
}

// Transcriber turns an audio sample into text. ok is false when no
// transcript was produced. *recognition.Dispatcher implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, sample []byte, provider string) (text string, ok bool)
}

// Option is a functional option for [New].
type Option func(*Handler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRequestTimeout bounds each inbound request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithMaxAudioBytes caps the accepted audio size. Zero or negative keeps the
// default.
func WithMaxAudioBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxAudioBytes = n
		}
	}
}

// defaultMaxAudioBytes matches the configuration default.
const defaultMaxAudioBytes = 25 << 20

// Handler serves the voice-recognition hook. It is safe for concurrent use.
type Handler struct {
	tr            Transcriber
	active        string
	timeout       time.Duration
	maxAudioBytes int64
	log           *slog.Logger
	metrics       *observe.Metrics
}

// New creates a Handler that transcribes hook records with the provider
// named by active ("random" or empty for random selection).
func New(tr Transcriber, active string, opts ...Option) *Handler {
	h := &Handler{
		tr:            tr,
		active:        active,
		maxAudioBytes: defaultMaxAudioBytes,
	}
	for _, o := range opts {
		o(h)
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Handle transcribes rec.InputAudio.Audio and sets rec.InputText on success.
// On failure rec is left untouched. It reports whether text was produced.
func (h *Handler) Handle(ctx context.Context, rec *Record) bool {
	if rec == nil || len(rec.InputAudio.Audio) == 0 {
		observe.WithTrace(ctx, h.log).Warn("voice recognition hook called without audio")
		return false
	}
	text, ok := h.tr.Transcribe(ctx, rec.InputAudio.Audio, h.active)
	if !ok {
		return false
	}
	rec.InputText = &text
	return true
}

// bounded applies the request timeout to ctx.
func (h *Handler) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

// jsonLimit is the request size that can carry maxAudioBytes of audio as
// base64 inside a record.
func (h *Handler) jsonLimit() int64 {
	return h.maxAudioBytes/3*4 + 4 + 4096
}
