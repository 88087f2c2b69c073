// Package ibm provides the ibm stt.Recognizer backed by the IBM Watson
// Speech to Text service.
package ibm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
)

const (
	// Name identifies this backend in errors.
	Name = "ibm"

	// DefaultBaseURL is the Speech to Text service root.
	DefaultBaseURL = "https://stream.watsonplatform.net/speech-to-text/api"

	defaultLanguage = "en-US"
	minSampleRate   = 16000
)

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)

// Recognizer implements stt.Recognizer for IBM Watson. It is safe for
// concurrent use.
type Recognizer struct {
	username   string
	password   string
	baseURL    string
	language   string
	httpClient *http.Client
}

// Option is a functional option for Recognizer.
type Option func(*Recognizer)

// WithBaseURL overrides the service root (e.g. a regional instance URL).
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

// WithLanguage selects the "<language>_BroadbandModel" recognition model.
// Defaults to "en-US".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) {
		if lang != "" {
			r.language = lang
		}
	}
}

// New creates a Recognizer using HTTP basic authentication.
func New(username, password string, opts ...Option) (*Recognizer, error) {
	if username == "" {
		return nil, errors.New("ibm: username must not be empty")
	}
	if password == "" {
		return nil, errors.New("ibm: password must not be empty")
	}
	r := &Recognizer{
		username:   username,
		password:   password,
		baseURL:    DefaultBaseURL,
		language:   defaultLanguage,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Model returns the broadband model name for the configured language.
func (r *Recognizer) Model() string {
	return r.language + "_BroadbandModel"
}

// Recognize uploads clip as WAV (at least 16 kHz) and returns every
// recognised utterance joined by newlines.
func (r *Recognizer) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	wav := clip.AtLeast(minSampleRate).WAV()

	q := url.Values{}
	q.Set("profanity_filter", "false")
	q.Set("model", r.Model())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/recognize?"+q.Encode(), bytes.NewReader(wav))
	if err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("build request: %w", err))
	}
	req.SetBasicAuth(r.username, r.password)
	req.Header.Set("Content-Type", "audio/wav")

	body, err := stt.Do(r.httpClient, Name, req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Results []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("decode response: %w", err))
	}

	var lines []string
	for _, res := range resp.Results {
		for _, alt := range res.Alternatives {
			if t := strings.TrimSpace(alt.Transcript); t != "" {
				lines = append(lines, t)
			}
		}
	}
	if len(lines) == 0 {
		return "", stt.ErrUnknownValue
	}
	return strings.Join(lines, "\n"), nil
}
