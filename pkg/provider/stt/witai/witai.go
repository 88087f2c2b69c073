// Package witai provides the wit-ai stt.Recognizer backed by the Wit.ai
// /speech endpoint.
//
// Wit.ai keys are per-app server access tokens; the recognition language is
// a property of the app, not of the request.
package witai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
)

const (
	// Name identifies this backend in errors.
	Name = "wit-ai"

	// DefaultBaseURL is the Wit.ai API host.
	DefaultBaseURL = "https://api.wit.ai"

	// DefaultAPIVersion pins the response schema.
	DefaultAPIVersion = "20240304"

	minSampleRate = 8000
)

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)

// Recognizer implements stt.Recognizer for Wit.ai. It is safe for concurrent
// use.
type Recognizer struct {
	token      string
	baseURL    string
	version    string
	httpClient *http.Client
}

// Option is a functional option for Recognizer.
type Option func(*Recognizer)

// WithBaseURL overrides the API host. Used by tests.
func WithBaseURL(u string) Option {
	return func(r *Recognizer) {
		if u != "" {
			r.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Recognizer) { r.httpClient = c }
}

// WithAPIVersion overrides the "v" query parameter.
func WithAPIVersion(v string) Option {
	return func(r *Recognizer) {
		if v != "" {
			r.version = v
		}
	}
}

// New creates a Recognizer for the given server access token.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("witai: apiKey must not be empty")
	}
	r := &Recognizer{
		token:      apiKey,
		baseURL:    DefaultBaseURL,
		version:    DefaultAPIVersion,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Recognize uploads clip as a WAV file and returns the final transcription.
func (r *Recognizer) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	wav := clip.AtLeast(minSampleRate).WAV()

	u := r.baseURL + "/speech?" + url.Values{"v": {r.version}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(wav))
	if err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	body, err := stt.Do(r.httpClient, Name, req)
	if err != nil {
		return "", err
	}
	return parseResponse(body)
}

// speechChunk covers both response generations: older API versions reply
// with a single object carrying "_text", newer ones stream a sequence of
// objects carrying "text" and "is_final".
type speechChunk struct {
	Text       *string `json:"text"`
	LegacyText *string `json:"_text"`
	IsFinal    bool    `json:"is_final"`
	Error      string  `json:"error"`
	Code       string  `json:"code"`
}

func parseResponse(body []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var last, final string
	for {
		var chunk speechChunk
		err := dec.Decode(&chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", stt.NewRequestError(Name, 0, fmt.Errorf("decode response: %w", err))
		}
		if chunk.Error != "" {
			return "", stt.NewRequestError(Name, 0, fmt.Errorf("%s (%s)", chunk.Error, chunk.Code))
		}
		text := chunk.Text
		if text == nil {
			text = chunk.LegacyText
		}
		if text == nil {
			continue
		}
		last = *text
		if chunk.IsFinal {
			final = *text
		}
	}
	if final == "" {
		final = last
	}
	if final = strings.TrimSpace(final); final == "" {
		return "", stt.ErrUnknownValue
	}
	return final, nil
}
