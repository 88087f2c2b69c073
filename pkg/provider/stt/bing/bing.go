// Package bing provides the bing stt.Recognizer backed by the Microsoft
// Bing Speech REST API.
//
// Every recognition request is authorised with a short-lived access token
// obtained from the token issuance endpoint using the subscription key. The
// token is cached and reused for [TokenLifetime].
package bing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
	"github.com/google/uuid"
)

const (
	// Name identifies this backend in errors.
	Name = "bing"

	// DefaultTokenURL issues access tokens for a subscription key.
	DefaultTokenURL = "https://api.cognitive.microsoft.com/sts/v1.0/issueToken"

	// DefaultRecognizeURL is the interactive recognition endpoint.
	DefaultRecognizeURL = "https://speech.platform.bing.com/speech/recognition/interactive/cognitiveservices/v1"

	// TokenLifetime is how long an issued token is reused.
	TokenLifetime = 10 * time.Minute

	defaultLanguage = "en-US"
	sampleRate      = 16000
)

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)

// Recognizer implements stt.Recognizer for Bing Speech. It is safe for
// concurrent use.
type Recognizer struct {
	key          string
	tokenURL     string
	recognizeURL string
	language     string
	httpClient   *http.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// Option is a functional option for Recognizer.
type Option func(*Recognizer)

// WithRecognizeURL overrides the recognition endpoint.
func WithRecognizeURL(u string) Option {
	return func(r *Recognizer) {
		if u != "" {
			r.recognizeURL = u
		}
	}
}

// WithTokenURL overrides the token issuance endpoint.
func WithTokenURL(u string) Option {
	return func(r *Recognizer) {
		if u != "" {
			r.tokenURL = u
		}
	}
}

// WithHTTPClient sets the HTTP client used for both endpoints.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Recognizer) { r.httpClient = c }
}

// WithLanguage sets the recognition language. Defaults to "en-US".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) {
		if lang != "" {
			r.language = lang
		}
	}
}

// WithClock replaces the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Recognizer) { r.now = now }
}

// New creates a Recognizer for the given subscription key.
func New(apiKey string, opts ...Option) (*Recognizer, error) {
	if apiKey == "" {
		return nil, errors.New("bing: apiKey must not be empty")
	}
	r := &Recognizer{
		key:          apiKey,
		tokenURL:     DefaultTokenURL,
		recognizeURL: DefaultRecognizeURL,
		language:     defaultLanguage,
		httpClient:   &http.Client{},
		now:          time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Recognize uploads clip as 16 kHz mono WAV and returns the display text.
func (r *Recognizer) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	token, err := r.accessToken(ctx)
	if err != nil {
		return "", err
	}

	wav := clip.Convert(audio.Format{SampleRate: sampleRate, Channels: 1}).WAV()

	q := url.Values{}
	q.Set("language", r.language)
	q.Set("locale", r.language)
	q.Set("requestid", uuid.NewString())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.recognizeURL+"?"+q.Encode(), bytes.NewReader(wav))
	if err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", `audio/wav; codec="audio/pcm"; samplerate=16000`)

	body, err := stt.Do(r.httpClient, Name, req)
	if err != nil {
		// A revoked token must not be reused for the rest of its lifetime.
		var reqErr *stt.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusUnauthorized {
			r.invalidateToken(token)
		}
		return "", err
	}

	var resp struct {
		RecognitionStatus string `json:"RecognitionStatus"`
		DisplayText       string `json:"DisplayText"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("decode response: %w", err))
	}
	if resp.RecognitionStatus != "Success" {
		return "", stt.ErrUnknownValue
	}
	text := strings.TrimSpace(resp.DisplayText)
	if text == "" {
		return "", stt.ErrUnknownValue
	}
	return text, nil
}

// accessToken returns the cached token or issues a new one. The lock is held
// across the issuance request so concurrent callers share one token.
func (r *Recognizer) accessToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.token != "" && now.Before(r.expires) {
		return r.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, http.NoBody)
	if err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("build token request: %w", err))
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", r.key)

	body, err := stt.Do(r.httpClient, Name, req)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", stt.NewRequestError(Name, 0, errors.New("token endpoint returned an empty token"))
	}
	r.token = token
	r.expires = now.Add(TokenLifetime)
	return token, nil
}

// invalidateToken drops the cached token if it is still the rejected one.
// A token issued meanwhile by a concurrent caller is kept.
func (r *Recognizer) invalidateToken(rejected string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.token == rejected {
		r.token = ""
	}
}
