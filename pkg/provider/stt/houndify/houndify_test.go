package houndify_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
	"github.com/MrWong99/voicerec/pkg/provider/stt/houndify"
)

var (
	rawKey    = []byte("super-secret-client-key")
	clientKey = base64.URLEncoding.EncodeToString(rawKey)
	fixedTime = time.Unix(1700000000, 0)
)

func testClip(t *testing.T, rate int) *audio.Clip {
	t.Helper()
	clip, err := audio.NewClip(make([]byte, rate/10*2), rate, 1)
	if err != nil {
		t.Fatalf("NewClip: %v", err)
	}
	return clip
}

// verifySignature recomputes the signature from the request headers.
func verifySignature(t *testing.T, r *http.Request) {
	t.Helper()
	var info struct {
		ClientID string
		UserID   string
	}
	if err := json.Unmarshal([]byte(r.Header.Get("Hound-Request-Info")), &info); err != nil {
		t.Errorf("Hound-Request-Info: %v", err)
		return
	}
	ids := strings.Split(r.Header.Get("Hound-Request-Authentication"), ";")
	if len(ids) != 2 || ids[0] != info.UserID {
		t.Errorf("Hound-Request-Authentication = %q", r.Header.Get("Hound-Request-Authentication"))
		return
	}
	parts := strings.Split(r.Header.Get("Hound-Client-Authentication"), ";")
	if len(parts) != 3 {
		t.Errorf("Hound-Client-Authentication = %q", r.Header.Get("Hound-Client-Authentication"))
		return
	}
	if parts[0] != "client-1" || info.ClientID != "client-1" {
		t.Errorf("client id = %q / %q", parts[0], info.ClientID)
	}
	if parts[1] != strconv.FormatInt(fixedTime.Unix(), 10) {
		t.Errorf("timestamp = %q", parts[1])
	}
	if want := houndify.Sign(rawKey, ids[0], ids[1], fixedTime.Unix()); parts[2] != want {
		t.Errorf("signature = %q, want %q", parts[2], want)
	}
}

func newServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifySignature(t, r)
		data, _ := io.ReadAll(r.Body)
		clip, err := audio.Load(data)
		if err != nil {
			t.Errorf("body is not WAV: %v", err)
		} else if clip.SampleRate != 8000 && clip.SampleRate != 16000 {
			t.Errorf("sample rate %d not accepted by Houndify", clip.SampleRate)
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRecognizer(t *testing.T, url string) *houndify.Recognizer {
	t.Helper()
	r, err := houndify.New("client-1", clientKey,
		houndify.WithURL(url),
		houndify.WithClock(func() time.Time { return fixedTime }),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name, id, key string
	}{
		{"empty id", "", clientKey},
		{"empty key", "client-1", ""},
		{"invalid key", "client-1", "!!not base64!!"},
	}
	for _, tt := range tests {
		if _, err := houndify.New(tt.id, tt.key); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestNew_UnpaddedKey(t *testing.T) {
	if _, err := houndify.New("client-1", strings.TrimRight(clientKey, "=")); err != nil {
		t.Fatalf("unpadded key should be accepted: %v", err)
	}
}

func TestRecognize_Success(t *testing.T) {
	srv := newServer(t, `{"Status":"OK","Disambiguation":{"ChoiceData":[{"Transcription":"what time is it"},{"Transcription":"what thyme"}]}}`)
	got, err := newRecognizer(t, srv.URL).Recognize(context.Background(), testClip(t, 44100))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got != "what time is it" {
		t.Errorf("Recognize() = %q", got)
	}
}

func TestRecognize_Keeps8kHz(t *testing.T) {
	srv := newServer(t, `{"Status":"OK","Disambiguation":{"ChoiceData":[{"Transcription":"hi"}]}}`)
	if _, err := newRecognizer(t, srv.URL).Recognize(context.Background(), testClip(t, 8000)); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
}

func TestRecognize_NoDisambiguationIsUnknownValue(t *testing.T) {
	srv := newServer(t, `{"Status":"OK","Disambiguation":null}`)
	_, err := newRecognizer(t, srv.URL).Recognize(context.Background(), testClip(t, 16000))
	if !errors.Is(err, stt.ErrUnknownValue) {
		t.Errorf("expected ErrUnknownValue, got %v", err)
	}
}

func TestRecognize_StatusErrorIsRequestError(t *testing.T) {
	srv := newServer(t, `{"Status":"Error","ErrorMessage":"Invalid client key"}`)
	_, err := newRecognizer(t, srv.URL).Recognize(context.Background(), testClip(t, 16000))
	var reqErr *stt.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid client key") {
		t.Errorf("error %q should carry the service message", err)
	}
}
