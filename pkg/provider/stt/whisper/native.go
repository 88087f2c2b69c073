// Package whisper provides the local-offline stt.Recognizer backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
//
// The model is loaded once by [NewNative] and shared by every call; each
// Recognize call creates its own whisper context, so concurrent calls do not
// interfere.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// Name identifies this backend in errors.
	Name = "local-offline"

	defaultLanguage = "en"

	// whisper.cpp only accepts 16 kHz mono float samples.
	modelSampleRate = 16000
)

// Compile-time assertion that NativeProvider satisfies stt.Recognizer.
var _ stt.Recognizer = (*NativeProvider)(nil)

// NativeProvider implements stt.Recognizer using whisper.cpp Go bindings.
type NativeProvider struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g. "en",
// "de", "auto"). Region suffixes such as "en-US" are reduced to the base
// language. Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) {
		if lang != "" {
			p.language = BaseLanguage(lang)
		}
	}
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Recognize runs whisper.cpp inference over clip. It returns
// stt.ErrUnknownValue when the model produces no text.
func (p *NativeProvider) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", stt.NewRequestError(Name, 0, err)
	}
	samples := clip.Convert(audio.Format{SampleRate: modelSampleRate, Channels: 1}).Float32()

	// A context is not thread-safe, but the model can be shared.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("create context: %w", err))
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("set language %q: %w", p.language, err))
	}

	// Returning false from the encoder-begin callback aborts inference.
	proceed := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, proceed, nil, nil); err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("process audio: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return "", stt.NewRequestError(Name, 0, err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", stt.NewRequestError(Name, 0, fmt.Errorf("read segment: %w", err))
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", stt.ErrUnknownValue
	}
	return strings.Join(parts, " "), nil
}

// BaseLanguage strips a region suffix from a BCP-47 tag ("en-US" → "en").
func BaseLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}
