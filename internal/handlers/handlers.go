// Package handlers exposes the digit recognition service over HTTP.
package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/romba050/hand-written-digits/internal/config"
	"github.com/romba050/hand-written-digits/internal/diagram"
	"github.com/romba050/hand-written-digits/internal/history"
	"github.com/romba050/hand-written-digits/internal/model"
	"github.com/romba050/hand-written-digits/internal/preprocess"
)

//go:embed static
var staticFS embed.FS

// ErrModelNotLoaded is returned on inference endpoints while no model
// artifact has been loaded.
var ErrModelNotLoaded = errors.New("model not loaded, train the model first")

// Handler serves the prediction API. The model handle is injected at
// construction and may be nil, which keeps the server up in a degraded
// state where inference endpoints report the condition instead of
// crashing the process.
type Handler struct {
	handle  *model.Handle
	cfg     *config.Config
	log     *history.Log
	logger  *slog.Logger
	capture func(name string) bool
}

// New creates a handler. log may be nil to disable the prediction log.
func New(handle *model.Handle, cfg *config.Config, log *history.Log, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		handle:  handle,
		cfg:     cfg,
		log:     log,
		logger:  logger,
		capture: model.NameFilter(cfg.Activation.Layers),
	}
}

// Routes registers all endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.Get("/history", h.History)
	r.Get("/model-architecture", h.ModelArchitecture)
	r.Post("/predict", h.Predict)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, model.ErrorResponse{Error: err.Error()})
}

// Index serves the embedded drawing canvas page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// Health reports liveness and whether the model artifact is loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:      "healthy",
		ModelLoaded: h.handle != nil,
	})
}

// Predict classifies a base64-encoded canvas image.
//
// Failure mapping: no model → 500; missing image field, undecodable
// payload, or blank canvas → 400; anything else → 500 with the
// underlying message passed through.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if h.handle == nil {
		writeError(w, http.StatusInternalServerError, ErrModelNotLoaded)
		return
	}

	var req model.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, errors.New("no image data provided"))
		return
	}

	start := time.Now()
	input, err := preprocess.FromBase64(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if h.cfg.MinInk > 0 && preprocess.Ink(input) < h.cfg.MinInk {
		writeError(w, http.StatusBadRequest, errors.New("canvas appears to be blank"))
		return
	}

	probs, activations, err := h.handle.PredictWithActivations(input, h.capture, h.cfg.Activation.MaxSamples)
	if err != nil {
		h.logger.Error("prediction failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := model.Response(probs, activations)
	h.log.Record(r.Context(), resp.Digit, resp.Confidence, time.Since(start))
	h.logger.Info("prediction served",
		"digit", resp.Digit,
		"confidence", resp.Confidence,
		"latency", time.Since(start))

	writeJSON(w, http.StatusOK, resp)
}

// ModelArchitecture renders the layer stack as a PNG diagram. The image
// is rendered to a buffer first so a render failure still produces a
// JSON error instead of a truncated 200 response.
func (h *Handler) ModelArchitecture(w http.ResponseWriter, r *http.Request) {
	if h.handle == nil {
		writeError(w, http.StatusInternalServerError, ErrModelNotLoaded)
		return
	}
	var buf bytes.Buffer
	if err := diagram.RenderPNG(&buf, h.handle.LayerSummaries()); err != nil {
		h.logger.Error("architecture render failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// History returns recent predictions from the log, newest first. When
// the log is disabled it returns an empty list.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.log.Recent(r.Context(), 50)
	if err != nil {
		h.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
