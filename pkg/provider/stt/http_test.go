package stt_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
)

func TestDo_Success(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	body, err := stt.Do(srv.Client(), "test", req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
}

func TestDo_StatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	_, err := stt.Do(srv.Client(), "wit-ai", req)

	var reqErr *stt.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *stt.RequestError, got %T: %v", err, err)
	}
	if reqErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", reqErr.StatusCode)
	}
	if reqErr.Provider != "wit-ai" {
		t.Errorf("Provider = %q, want wit-ai", reqErr.Provider)
	}
	if !strings.Contains(err.Error(), "invalid key") {
		t.Errorf("error %q should quote the response body", err)
	}
}

func TestDo_TransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	_, err := stt.Do(nil, "ibm", req)

	var reqErr *stt.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *stt.RequestError, got %v", err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", reqErr.StatusCode)
	}
}

func TestRequestError_Unwrap(t *testing.T) {
	t.Parallel()
	err := stt.NewRequestError("bing", 0, context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("RequestError should unwrap to its cause")
	}
	if errors.Is(err, stt.ErrUnknownValue) {
		t.Error("RequestError must not match ErrUnknownValue")
	}
}

func TestRecognizerFunc(t *testing.T) {
	t.Parallel()
	var r stt.Recognizer = stt.RecognizerFunc(func(_ context.Context, clip *audio.Clip) (string, error) {
		return fmt.Sprintf("%d frames", clip.Frames()), nil
	})
	clip, _ := audio.NewClip(make([]byte, 8), 16000, 1)
	got, err := r.Recognize(context.Background(), clip)
	if err != nil || got != "4 frames" {
		t.Errorf("Recognize() = %q, %v", got, err)
	}
}
