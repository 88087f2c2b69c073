package hook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voicerec/internal/hook"
)

type transcribeCall struct {
	sample   []byte
	provider string
	deadline bool
}

// fakeTranscriber answers with text when ok is set and records every call.
type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	ok    bool
	calls []transcribeCall
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, sample []byte, provider string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	f.calls = append(f.calls, transcribeCall{sample: sample, provider: provider, deadline: hasDeadline})
	if !f.ok {
		return "", false
	}
	return f.text, true
}

func (f *fakeTranscriber) Calls() []transcribeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcribeCall(nil), f.calls...)
}

func TestHandle_SetsInputTextOnSuccess(t *testing.T) {
	t.Parallel()
	tr := &fakeTranscriber{text: "play some jazz", ok: true}
	h := hook.New(tr, "wit-ai")

	rec := &hook.Record{InputAudio: hook.InputAudio{Audio: []byte("RIFF....")}}
	if !h.Handle(context.Background(), rec) {
		t.Fatal("Handle() = false, want true")
	}
	if rec.InputText == nil || *rec.InputText != "play some jazz" {
		t.Errorf("InputText = %v", rec.InputText)
	}
	calls := tr.Calls()
	if len(calls) != 1 || calls[0].provider != "wit-ai" || string(calls[0].sample) != "RIFF...." {
		t.Errorf("calls = %+v", calls)
	}
}

func TestHandle_LeavesInputTextUnsetOnFailure(t *testing.T) {
	t.Parallel()
	h := hook.New(&fakeTranscriber{}, "random")

	rec := &hook.Record{InputAudio: hook.InputAudio{Audio: []byte("RIFF....")}}
	if h.Handle(context.Background(), rec) {
		t.Fatal("Handle() = true, want false")
	}
	if rec.InputText != nil {
		t.Errorf("InputText = %q, want unset", *rec.InputText)
	}

	prior := "typed by the user"
	rec.InputText = &prior
	h.Handle(context.Background(), rec)
	if rec.InputText != &prior {
		t.Error("failure must not touch an existing input_text")
	}
}

func TestHandle_NoAudio(t *testing.T) {
	t.Parallel()
	tr := &fakeTranscriber{ok: true, text: "x"}
	h := hook.New(tr, "")

	if h.Handle(context.Background(), nil) || h.Handle(context.Background(), &hook.Record{}) {
		t.Error("records without audio must not produce text")
	}
	if len(tr.Calls()) != 0 {
		t.Error("transcriber must not be called without audio")
	}
}

func TestRecord_JSONShape(t *testing.T) {
	t.Parallel()
	var rec hook.Record
	if err := json.Unmarshal([]byte(`{"input_audio":{"audio":"AQID"}}`), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(rec.InputAudio.Audio, []byte{1, 2, 3}) {
		t.Errorf("audio = %v", rec.InputAudio.Audio)
	}

	text := "hi"
	out, err := json.Marshal(hook.Record{InputText: &text})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"input_audio":{},"input_text":"hi"}` {
		t.Errorf("json = %s", out)
	}
}

func newServer(t *testing.T, h *hook.Handler) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postRecord(t *testing.T, url string, rec hook.Record) (*http.Response, hook.Record) {
	t.Helper()
	body, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	resp, err := http.Post(url+hook.PathRecord, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var out hook.Record
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp, out
}

func TestServeRecord(t *testing.T) {
	t.Parallel()
	tr := &fakeTranscriber{text: "lights off", ok: true}
	srv := newServer(t, hook.New(tr, "bing", hook.WithRequestTimeout(time.Minute)))

	resp, out := postRecord(t, srv.URL, hook.Record{InputAudio: hook.InputAudio{Audio: []byte("audio")}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out.InputText == nil || *out.InputText != "lights off" {
		t.Errorf("input_text = %v", out.InputText)
	}
	if out.InputAudio.Audio != nil {
		t.Error("audio must not be echoed")
	}
	calls := tr.Calls()
	if len(calls) != 1 || calls[0].provider != "bing" || !calls[0].deadline {
		t.Errorf("calls = %+v, want one bounded call for bing", calls)
	}
}

func TestServeRecord_NoResultKeepsFieldUnset(t *testing.T) {
	t.Parallel()
	srv := newServer(t, hook.New(&fakeTranscriber{}, "random"))

	resp, out := postRecord(t, srv.URL, hook.Record{InputAudio: hook.InputAudio{Audio: []byte("audio")}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out.InputText != nil {
		t.Errorf("input_text = %q, want unset", *out.InputText)
	}
}

func TestServeRecord_Errors(t *testing.T) {
	t.Parallel()
	srv := newServer(t, hook.New(&fakeTranscriber{ok: true}, "", hook.WithMaxAudioBytes(8)))

	resp, err := http.Post(srv.URL+hook.PathRecord, "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = postRecord(t, srv.URL, hook.Record{InputAudio: hook.InputAudio{Audio: make([]byte, 64)}})
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized: status = %d, want 413", resp.StatusCode)
	}
}

func TestServeTranscribe(t *testing.T) {
	t.Parallel()
	tr := &fakeTranscriber{text: "set a timer", ok: true}
	srv := newServer(t, hook.New(tr, "bing"))

	resp, err := http.Post(srv.URL+hook.PathTranscribe+"?provider=ibm", "audio/wav", strings.NewReader("RIFF"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out hook.TranscribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Provider != "ibm" || out.Text != "set a timer" {
		t.Errorf("response = %+v", out)
	}
	if calls := tr.Calls(); len(calls) != 1 || calls[0].provider != "ibm" {
		t.Errorf("explicit provider must override the active one, calls = %+v", calls)
	}
}

func TestServeTranscribe_Failures(t *testing.T) {
	t.Parallel()
	srv := newServer(t, hook.New(&fakeTranscriber{}, "", hook.WithMaxAudioBytes(16)))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no result", "RIFF", http.StatusUnprocessableEntity},
		{"empty body", "", http.StatusBadRequest},
		{"too large", strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		resp, err := http.Post(srv.URL+hook.PathTranscribe, "audio/wav", strings.NewReader(tt.body))
		if err != nil {
			t.Fatalf("%s: POST: %v", tt.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.want)
		}
	}
}

func TestServeWS_AnswersRecordsInOrder(t *testing.T) {
	t.Parallel()
	tr := &fakeTranscriber{text: "hello", ok: true}
	srv := newServer(t, hook.New(tr, "houndify"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + hook.PathRecordWS
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.CloseNow()

	for i, audio := range [][]byte{[]byte("first"), nil, []byte("third")} {
		if err := wsjson.Write(ctx, c, hook.Record{InputAudio: hook.InputAudio{Audio: audio}}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		var out hook.Record
		if err := wsjson.Read(ctx, c, &out); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		gotText := out.InputText != nil && *out.InputText == "hello"
		if wantText := audio != nil; gotText != wantText {
			t.Errorf("record %d: input_text = %v, want set=%v", i, out.InputText, wantText)
		}
	}
	_ = c.Close(websocket.StatusNormalClosure, "done")

	calls := tr.Calls()
	if len(calls) != 2 || string(calls[0].sample) != "first" || string(calls[1].sample) != "third" {
		t.Errorf("calls = %+v", calls)
	}
}
