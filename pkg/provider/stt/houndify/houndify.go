// Package houndify provides the houndify stt.Recognizer backed by the
// SoundHound Houndify voice API.
//
// Requests are authenticated with an HMAC-SHA256 signature over the user id,
// request id and timestamp, keyed by the base64url-decoded client key.
// Houndify only accepts English and only at 8 kHz or 16 kHz.
package houndify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
	"github.com/google/uuid"
)

const (
	// Name identifies this backend in errors.
	Name = "houndify"

	// DefaultURL is the audio query endpoint.
	DefaultURL = "https://api.houndify.com/v1/audio"
)

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)

// Recognizer implements stt.Recognizer for Houndify. It is safe for
// concurrent use.
type Recognizer struct {
	clientID   string
	clientKey  []byte
	url        string
	httpClient *http.Client
	now        func() time.Time
}

// Option is a functional option for Recognizer.
type Option func(*Recognizer)

// WithURL overrides the audio query endpoint.
func WithURL(u string) Option {
	return func(r *Recognizer) {
		if u != "" {
			r.url = u
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Recognizer) { r.httpClient = c }
}

// WithClock replaces the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recognizer) { r.now = now }
}

// New creates a Recognizer. clientKey is the base64url-encoded key shown in
// the Houndify dashboard.
func New(clientID, clientKey string, opts ...Option) (*Recognizer, error) {
	if clientID == "" {
		return nil, errors.New("houndify: clientID must not be empty")
	}
	if clientKey == "" {
		return nil, errors.New("houndify: clientKey must not be empty")
	}
	key, err := decodeKey(clientKey)
	if err != nil {
		return nil, fmt.Errorf("houndify: decode clientKey: %w", err)
	}
	r := &Recognizer{
		clientID:   clientID,
		clientKey:  key,
		url:        DefaultURL,
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// decodeKey accepts the key with or without base64 padding.
func decodeKey(s string) ([]byte, error) {
	if key, err := base64.URLEncoding.DecodeString(s); err == nil {
		return key, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Sign computes the Hound-Client-Authentication signature for one request.
func Sign(key []byte, userID, requestID string, timestamp int64) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(userID + ";" + requestID + strconv.FormatInt(timestamp, 10)))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// Recognize uploads clip as 8 or 16 kHz mono WAV and returns the top
// transcription.
func (r *Recognizer) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	rate := 16000
	if clip.SampleRate == 8000 {
		rate = 8000
	}
	wav := clip.Convert(audio.Format{SampleRate: rate, Channels: 1}).WAV()

	userID := uuid.NewString()
	requestID := uuid.NewString()
	ts := r.now().Unix()

	info, err := json.Marshal(struct {
		ClientID string `json:"ClientID"`
		UserID   string `json:"UserID"`
	}{r.clientID, userID})
	if err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("marshal request info: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(wav))
	if err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Hound-Request-Info", string(info))
	req.Header.Set("Hound-Request-Authentication", userID+";"+requestID)
	req.Header.Set("Hound-Client-Authentication",
		r.clientID+";"+strconv.FormatInt(ts, 10)+";"+Sign(r.clientKey, userID, requestID, ts))

	body, err := stt.Do(r.httpClient, Name, req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Status         string `json:"Status"`
		ErrorMessage   string `json:"ErrorMessage"`
		Disambiguation *struct {
			ChoiceData []struct {
				Transcription string `json:"Transcription"`
			} `json:"ChoiceData"`
		} `json:"Disambiguation"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("decode response: %w", err))
	}
	if resp.Status != "OK" {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("status %q: %s", resp.Status, resp.ErrorMessage))
	}
	if resp.Disambiguation == nil || len(resp.Disambiguation.ChoiceData) == 0 {
		return "", stt.ErrUnknownValue
	}
	text := strings.TrimSpace(resp.Disambiguation.ChoiceData[0].Transcription)
	if text == "" {
		return "", stt.ErrUnknownValue
	}
	return text, nil
}
