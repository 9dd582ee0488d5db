package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/go-pocket-tts/internal/audiocache"
	"github.com/example/go-pocket-tts/internal/orchestrator"
)

// openaiOrchestrator is the subset of *orchestrator.Orchestrator the
// OpenAI-compatible handlers need, so tests can substitute a fake.
type openaiOrchestrator interface {
	Synthesize(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
}

// requestObserver is notified of every production request, for the
// preloader's usage counters and warmed-cache hit attribution. Optional:
// nil disables the hook.
type requestObserver interface {
	RecordRequest(text, voice string, key audiocache.Key, wasCacheHit bool)
}

// openaiHandler implements an OpenAI-compatible audio surface on top of
// an Orchestrator, independent of the legacy /tts handler.
type openaiHandler struct {
	orch     openaiOrchestrator
	voices   VoiceLister
	observer requestObserver
	log      logger
}

type logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Info(msg string, args ...any)
}

// speechRequest is the OpenAI-compatible request body shared by
// /v1/audio/speech, /v1/audio/stream, and the compatibility aliases.
type speechRequest struct {
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
	Speed          any    `json:"speed"`
	Model          string `json:"model"` // accepted and ignored, for client compatibility
}

// blendRequest additionally carries the weighted voice set.
type blendRequest struct {
	speechRequest
	Voices      []blendVoiceWeight `json:"voices"`
	VoicesMap   map[string]float64 `json:"-"`
	BlendMethod string             `json:"blend_method"`
}

type blendVoiceWeight struct {
	Voice  string  `json:"voice"`
	Weight float64 `json:"weight"`
}

func registerOpenAIRoutes(mux *http.ServeMux, h *openaiHandler) {
	mux.HandleFunc("/v1/audio/speech", h.handleSpeech)
	mux.HandleFunc("/v1/audio/stream", h.handleStream)
	mux.HandleFunc("/v1/audio/blend", h.handleBlend)
	mux.HandleFunc("/v1/voices", h.handleVoices)
	mux.HandleFunc("/v1/models", h.handleModels)
	mux.HandleFunc("/v1/health", h.handleHealth)

	// Defensive aliases for clients that incorrectly append a path.
	mux.HandleFunc("/v1/audio/stream/audio/speech", h.handleStream)
	mux.HandleFunc("/v1/audio/speech/audio/speech", h.handleSpeech)
}

// parseSpeed coerces the speed field from string/int/float JSON
// representations. Zero/absent returns 0 (caller applies the config
// default).
func parseSpeed(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return 0, nil
		}

		return strconv.ParseFloat(t, 64)
	default:
		return 0, errors.New("speed must be a number or numeric string")
	}
}

func writeOrchestratorError(w http.ResponseWriter, err error) {
	var oerr *orchestrator.Error
	if !errors.As(err, &oerr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "InternalError", "detail": err.Error(),
		})

		return
	}

	status := http.StatusInternalServerError

	switch oerr.Kind {
	case orchestrator.KindValidation, orchestrator.KindVoiceNotFound:
		status = http.StatusBadRequest
	case orchestrator.KindModelNotReady:
		status = http.StatusServiceUnavailable
	case orchestrator.KindEmptyAudio, orchestrator.KindInvalidAudio, orchestrator.KindEncoding:
		status = http.StatusInternalServerError
	}

	body := map[string]any{"error": string(oerr.Kind), "detail": oerr.Detail}
	if len(oerr.Warnings) > 0 {
		body["warnings"] = oerr.Warnings
	}

	for k, v := range oerr.Diagnostics {
		body[k] = v
	}

	writeJSON(w, status, body)
}

func decodeSpeechRequest(r *http.Request) (orchestrator.Request, []string, error) {
	var body speechRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return orchestrator.Request{}, nil, errors.New("invalid JSON body")
	}

	speed, err := parseSpeed(body.Speed)
	if err != nil {
		return orchestrator.Request{}, nil, err
	}

	req := orchestrator.Request{
		Text:   body.Input,
		Voice:  body.Voice,
		Format: orchestrator.Format(strings.ToLower(body.ResponseFormat)),
		Speed:  speed,
	}

	warnings, verr := orchestrator.ValidateRequest(req)
	if verr != nil {
		return orchestrator.Request{}, nil, verr
	}

	return req, warnings, nil
}

func (h *openaiHandler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, _, err := decodeSpeechRequest(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	h.synthesizeAndWrite(w, r, req)
}

func (h *openaiHandler) synthesizeAndWrite(w http.ResponseWriter, r *http.Request, req orchestrator.Request) {
	result, err := h.orch.Synthesize(r.Context(), req)
	if err != nil {
		writeOrchestratorError(w, err)
		return
	}

	if h.observer != nil {
		key := audiocache.NewKey(req.Text, req.Voice, req.Speed, string(result.Format))
		h.observer.RecordRequest(req.Text, req.Voice, key, result.CacheHit)
	}

	w.Header().Set("Content-Type", "audio/"+string(result.Format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Bytes)
}

// handleStream implements a simple audio-level chunker: full synthesis
// completes first, then the encoded bytes are emitted in fixed-size
// chunks with a brief inter-chunk yield.
func (h *openaiHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, _, err := decodeSpeechRequest(r)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := h.orch.Synthesize(r.Context(), req)
	if err != nil {
		// Errors must be emitted before the first chunk is written.
		writeOrchestratorError(w, err)
		return
	}

	if h.observer != nil {
		key := audiocache.NewKey(req.Text, req.Voice, req.Speed, string(result.Format))
		h.observer.RecordRequest(req.Text, req.Voice, key, result.CacheHit)
	}

	w.Header().Set("Content-Type", "audio/"+string(result.Format))
	w.Header().Set("Transfer-Encoding", "chunked")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	const chunkSize = 4096

	data := result.Bytes
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}

		if _, werr := w.Write(data[off:end]); werr != nil {
			return
		}

		if flusher != nil {
			flusher.Flush()
		}

		if end < len(data) {
			time.Sleep(time.Millisecond)
		}
	}
}

func (h *openaiHandler) handleBlend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body blendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	speed, err := parseSpeed(body.Speed)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	weights := make(map[string]float64, len(body.Voices))
	for _, vw := range body.Voices {
		weights[vw.Voice] = vw.Weight
	}

	req := orchestrator.Request{
		Text:         body.Input,
		VoiceWeights: weights,
		Format:       orchestrator.Format(strings.ToLower(body.ResponseFormat)),
		Speed:        speed,
	}

	if _, verr := orchestrator.ValidateRequest(req); verr != nil {
		writeValidationError(w, verr)
		return
	}

	if len(weights) == 0 {
		writeError(w, http.StatusBadRequest, "voices must contain at least one {voice, weight} pair")
		return
	}

	h.synthesizeAndWrite(w, r, req)
}

// openWebUIVoice matches the OpenWebUI-compatible /v1/voices shape.
type openWebUIVoice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Language string `json:"language"`
	Region   string `json:"region"`
	Flag     string `json:"flag"`
}

func (h *openaiHandler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	var out []openWebUIVoice

	if h.voices != nil {
		for _, v := range h.voices.ListVoices() {
			out = append(out, openWebUIVoice{ID: v.ID, Name: v.ID})
		}
	}

	if out == nil {
		out = []openWebUIVoice{}
	}

	writeJSON(w, http.StatusOK, out)
}

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

func (h *openaiHandler) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []modelEntry{
			{ID: "tts-1", Object: "model", OwnedBy: "pockettts"},
		},
	})
}

func (h *openaiHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	voicesAvailable := 0
	if h.voices != nil {
		voicesAvailable = len(h.voices.ListVoices())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"model_loaded":     h.orch != nil,
		"voices_available": voicesAvailable,
		"version":          buildVersion(),
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var oerr *orchestrator.Error
	if errors.As(err, &oerr) {
		writeOrchestratorError(w, err)
		return
	}

	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": string(orchestrator.KindValidation), "detail": err.Error(),
	})
}
