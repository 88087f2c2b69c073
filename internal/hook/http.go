package hook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/voicerec/internal/observe"
)

// Routes served by [Handler.Register].
const (
	PathRecord     = "/v1/voice-recognition"
	PathRecordWS   = "/v1/voice-recognition/ws"
	PathTranscribe = "/v1/transcribe"
)

// TranscribeResponse is the body of a successful POST /v1/transcribe.
type TranscribeResponse struct {
	Provider string `json:"provider"`
	Text     string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register adds the hook routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST "+PathRecord, h.serveRecord)
	mux.HandleFunc("GET "+PathRecordWS, h.serveWS)
	mux.HandleFunc("POST "+PathTranscribe, h.serveTranscribe)
}

// serveRecord handles one JSON record. The response is the record with
// input_text filled in on success; the audio is not echoed back.
func (h *Handler) serveRecord(w http.ResponseWriter, r *http.Request) {
	var rec Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.jsonLimit()))
	if err := dec.Decode(&rec); err != nil {
		writeBodyError(w, err)
		return
	}
	if int64(len(rec.InputAudio.Audio)) > h.maxAudioBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "audio exceeds max_audio_bytes"})
		return
	}

	ctx, cancel := h.bounded(r.Context())
	defer cancel()
	ok := h.Handle(ctx, &rec)
	h.metrics.RecordHook(ctx, "http", ok)

	rec.InputAudio.Audio = nil
	writeJSON(w, http.StatusOK, rec)
}

// serveWS answers each JSON record received on the socket with the processed
// record, in order, until the client closes.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(h.jsonLimit())

	ctx := r.Context()
	log := observe.WithTrace(ctx, h.log)
	for {
		var rec Record
		if err := wsjson.Read(ctx, c, &rec); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				log.Debug("voice recognition websocket closed", "err", err)
			}
			return
		}

		reqCtx, cancel := h.bounded(ctx)
		ok := h.Handle(reqCtx, &rec)
		cancel()
		h.metrics.RecordHook(ctx, "ws", ok)

		rec.InputAudio.Audio = nil
		if err := wsjson.Write(ctx, c, rec); err != nil {
			log.Debug("voice recognition websocket write failed", "err", err)
			return
		}
	}
}

// serveTranscribe transcribes a raw audio body with the provider named in
// the query, bypassing the configured active provider.
func (h *Handler) serveTranscribe(w http.ResponseWriter, r *http.Request) {
	sample, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxAudioBytes))
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if len(sample) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty audio body"})
		return
	}
	provider := r.URL.Query().Get("provider")

	ctx, cancel := h.bounded(r.Context())
	defer cancel()
	text, ok := h.tr.Transcribe(ctx, sample, provider)
	h.metrics.RecordHook(ctx, "direct", ok)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "no transcription"})
		return
	}
	if provider == "" {
		provider = "random"
	}
	writeJSON(w, http.StatusOK, TranscribeResponse{Provider: provider, Text: text})
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request: " + err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
