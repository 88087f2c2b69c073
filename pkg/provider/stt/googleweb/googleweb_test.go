package googleweb_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
	"github.com/MrWong99/voicerec/pkg/provider/stt/googleweb"
)

func testClip(t *testing.T, rate int) *audio.Clip {
	t.Helper()
	pcm := make([]byte, 0, 8)
	for _, s := range []int16{0x0102, 0x0304, -2, 7} {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
	}
	clip, err := audio.NewClip(pcm, rate, 1)
	if err != nil {
		t.Fatalf("NewClip: %v", err)
	}
	return clip
}

func TestRecognize_SendsL16AndParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech-api/v2/recognize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "abc123" || q.Get("lang") != "de-DE" || q.Get("client") != "chromium" {
			t.Errorf("unexpected query %v", q)
		}
		if ct := r.Header.Get("Content-Type"); ct != "audio/l16; rate=16000" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) != 8 || binary.BigEndian.Uint16(body) != 0x0102 {
			t.Errorf("body should be big-endian PCM, got %x", body)
		}
		fmt.Fprintln(w, `{"result":[]}`)
		fmt.Fprintln(w, `{"result":[{"alternative":[{"transcript":"hallo welt","confidence":0.4},{"transcript":"hallo Welt","confidence":0.9}],"final":true}],"result_index":0}`)
	}))
	defer srv.Close()

	r, err := googleweb.New("abc123", googleweb.WithBaseURL(srv.URL), googleweb.WithLanguage("de-DE"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := r.Recognize(context.Background(), testClip(t, 16000))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got != "hallo Welt" {
		t.Errorf("Recognize() = %q, want %q", got, "hallo Welt")
	}
}

func TestRecognize_EmptyKeyUsesDefault(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		fmt.Fprintln(w, `{"result":[{"alternative":[{"transcript":"hi"}]}]}`)
	}))
	defer srv.Close()

	r, err := googleweb.New("", googleweb.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Recognize(context.Background(), testClip(t, 16000)); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if gotKey != googleweb.DefaultKey {
		t.Errorf("key = %q, want DefaultKey", gotKey)
	}
}

func TestRecognize_UpsamplesBelowMinimumRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "audio/l16; rate=8000" {
			t.Errorf("Content-Type = %q, want rate=8000", ct)
		}
		fmt.Fprintln(w, `{"result":[{"alternative":[{"transcript":"hi"}]}]}`)
	}))
	defer srv.Close()

	r, _ := googleweb.New("k", googleweb.WithBaseURL(srv.URL))
	if _, err := r.Recognize(context.Background(), testClip(t, 4000)); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
}

func TestRecognize_NoResultIsUnknownValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"result":[]}`)
	}))
	defer srv.Close()

	r, _ := googleweb.New("k", googleweb.WithBaseURL(srv.URL))
	_, err := r.Recognize(context.Background(), testClip(t, 16000))
	if !errors.Is(err, stt.ErrUnknownValue) {
		t.Errorf("expected ErrUnknownValue, got %v", err)
	}
}

func TestRecognize_HTTPErrorIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	r, _ := googleweb.New("bad", googleweb.WithBaseURL(srv.URL))
	_, err := r.Recognize(context.Background(), testClip(t, 16000))
	var reqErr *stt.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected RequestError with 403, got %v", err)
	}
}

func TestRecognize_MalformedJSONIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"result":`)
	}))
	defer srv.Close()

	r, _ := googleweb.New("k", googleweb.WithBaseURL(srv.URL))
	_, err := r.Recognize(context.Background(), testClip(t, 16000))
	var reqErr *stt.RequestError
	if !errors.As(err, &reqErr) {
		t.Errorf("expected RequestError, got %v", err)
	}
}
