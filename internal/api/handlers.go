package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/artifact"
	"cessation-pipeline/internal/ledger"
	"cessation-pipeline/internal/models"
	"cessation-pipeline/internal/pipeline"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context) (*pipeline.Manifest, error)
}

type Handler struct {
	Runner Runner
	Store  artifact.Store
	Ledger ledger.Ledger
	Log    *zap.Logger

	// running is set for the duration of a pipeline run
	running atomic.Bool
}

func NewHandler(runner Runner, store artifact.Store, led ledger.Ledger, log *zap.Logger) *Handler {
	if led == nil {
		led = ledger.Nop{}
	}
	if log == nil {
		log = zap.L()
	}
	return &Handler{Runner: runner, Store: store, Ledger: led, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Post("/runs", h.StartRun)
	r.Get("/runs/latest", h.LatestRun)
	r.Get("/artifacts", h.ListArtifacts)
	r.Get("/artifacts/{name}", h.GetArtifact)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}

// HealthCheck reports liveness and whether a run is executing
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:      "ok",
		BlobDriver:  string(h.Store.Driver()),
		RunInFlight: h.running.Load(),
	})
}

// StartRun executes the pipeline synchronously. A second request while a
// run is executing gets 409.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	if !h.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a pipeline run is already in progress")
		return
	}
	defer h.running.Store(false)

	m, err := h.Runner.Run(r.Context())
	if err != nil {
		h.Log.Error("api: pipeline run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, models.RunResponse{Manifest: m})
}

// LatestRun returns the manifest of the last successful run and the newest
// ledger entry
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	var resp models.RunResponse
	if run, err := h.Ledger.Latest(r.Context()); err == nil {
		resp.LastRecorded = &run
	} else if !eris.Is(err, ledger.ErrNoRuns) {
		h.Log.Warn("api: ledger lookup failed", zap.Error(err))
	}

	m, err := pipeline.LatestManifest(r.Context(), h.Store)
	switch {
	case err == nil:
		resp.Manifest = m
	case eris.Is(err, artifact.ErrNotFound):
		if resp.LastRecorded == nil {
			writeError(w, http.StatusNotFound, "no run has completed")
			return
		}
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListArtifacts lists stored artifacts
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	infos, err := h.Store.List(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if infos == nil {
		infos = []artifact.Info{}
	}
	writeJSON(w, http.StatusOK, models.ArtifactsResponse{Artifacts: infos})
}

// GetArtifact streams one artifact
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, rc, err := h.Store.Get(r.Context(), name)
	switch {
	case eris.Is(err, artifact.ErrNotFound):
		writeError(w, http.StatusNotFound, "artifact "+strconv.Quote(name)+" not found")
		return
	case eris.Is(err, artifact.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = rc.Close() }()

	ct := info.ContentType
	if ct == "" {
		ct = artifact.ContentType(name)
	}
	w.Header().Set("Content-Type", ct)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Warn("api: artifact stream interrupted", zap.String("artifact", name), zap.Error(err))
	}
}
