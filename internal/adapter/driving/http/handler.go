// Package httphandler is the HTTP driving adapter: the push webhook, the runs
// API and the operational endpoints.
package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/basicci/internal/application"
	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// TaskSubmitter starts accepted tasks in the background.
type TaskSubmitter interface {
	Submit(task model.Task)
}

// Handler serves the webhook and the REST API.
type Handler struct {
	verifier   *application.SignatureVerifier
	tasks      *application.TaskService
	dispatcher TaskSubmitter
	store      driven.ResultStore
	status     driven.StatusReader // nil disables the remote-status endpoint.
	version    string
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	verifier *application.SignatureVerifier,
	tasks *application.TaskService,
	dispatcher TaskSubmitter,
	store driven.ResultStore,
	status driven.StatusReader,
	version string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		verifier:   verifier,
		tasks:      tasks,
		dispatcher: dispatcher,
		store:      store,
		status:     status,
		version:    version,
		logger:     logger,
	}
}

// RegisterAPIRoutes registers every route on mux. metrics may be nil.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler, metrics http.Handler) {
	mux.HandleFunc("POST /webhook", h.Webhook)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/remote-status", h.GetRemoteStatus)
	mux.HandleFunc("POST /api/v1/run-id", h.CreateRunID)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /version", h.Version)
	mux.HandleFunc("GET /{$}", h.Banner)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
}

// ListRuns returns every stored run, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RunSummaryResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunSummaryResponse(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns one run with its stage results.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.store.Get(r.Context(), id)
	if errors.Is(err, driven.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(run))
}

// GetRemoteStatus returns the combined commit status GitHub currently shows
// for the run's commit.
func (h *Handler) GetRemoteStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		writeError(w, http.StatusNotImplemented, "remote status not configured")
		return
	}

	id := r.PathValue("id")
	run, err := h.store.Get(r.Context(), id)
	if errors.Is(err, driven.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	cs, err := h.status.FetchCombinedStatus(r.Context(), run.RepositoryURL, run.CommitSHA)
	if err != nil {
		h.logger.Warn("failed to fetch remote status", "run_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch remote status")
		return
	}

	writeJSON(w, http.StatusOK, toCombinedStatusResponse(run, cs))
}

// maxRunIDRequestBytes caps the body of a run id request.
const maxRunIDRequestBytes = 4 << 10

// CreateRunID hands out a run id for an optional commit hash, for clients
// that label work before submitting it. An empty body is allowed.
func (h *Handler) CreateRunID(w http.ResponseWriter, r *http.Request) {
	var req RunIDRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRunIDRequestBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, RunIDResponse{RunID: h.tasks.NewRunID(req.CommitHash)})
}

// Health returns a simple liveness response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Version reports the build version.
func (h *Handler) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: h.version})
}

// Banner answers the root path so a browser hit shows the service is up.
func (h *Handler) Banner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BannerResponse{
		Message: "basicci is running",
		Version: h.version,
	})
}
