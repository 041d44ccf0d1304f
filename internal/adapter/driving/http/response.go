package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse answers webhook deliveries.
type StatusResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// RunSummaryResponse is one entry of the runs overview.
type RunSummaryResponse struct {
	RunID      string `json:"run_id"`
	RepoURL    string `json:"repo_url"`
	Branch     string `json:"branch"`
	CommitSHA  string `json:"commit_sha"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	DurationMS int64  `json:"duration_ms"`
	Summary    string `json:"summary"`
	StageCount int    `json:"stage_count"`
	FailedAt   string `json:"failed_stage,omitempty"`
	DetailsURL string `json:"details_url,omitempty"`
}

// RunResponse is the full JSON representation of a run.
type RunResponse struct {
	RunSummaryResponse
	Stages []StageResponse `json:"stages"`
}

// StageResponse is the JSON representation of one stage result.
type StageResponse struct {
	Name       string `json:"name"`
	Command    string `json:"command"`
	Success    bool   `json:"success"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
}

// CombinedStatusResponse shows what GitHub currently displays for a run's
// commit next to the locally recorded verdict.
type CombinedStatusResponse struct {
	RunID       string                 `json:"run_id"`
	CommitSHA   string                 `json:"commit_sha"`
	LocalStatus string                 `json:"local_status"`
	State       string                 `json:"state"`
	Statuses    []CommitStatusResponse `json:"statuses"`
}

// CommitStatusResponse is one status context reported on a commit.
type CommitStatusResponse struct {
	Context     string `json:"context"`
	State       string `json:"state"`
	Description string `json:"description"`
	TargetURL   string `json:"target_url,omitempty"`
}

// RunIDRequest is the optional body of a run id request.
type RunIDRequest struct {
	CommitHash string `json:"commit_hash"`
}

// RunIDResponse carries a freshly generated run id.
type RunIDResponse struct {
	RunID string `json:"run_id"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// VersionResponse reports the running build.
type VersionResponse struct {
	Version string `json:"version"`
}

// BannerResponse answers the root path.
type BannerResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

func toRunSummaryResponse(run model.RunResult) RunSummaryResponse {
	resp := RunSummaryResponse{
		RunID:      run.RunID,
		RepoURL:    run.RepositoryURL,
		Branch:     run.Branch,
		CommitSHA:  run.CommitSHA,
		Status:     string(run.Status),
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339Nano),
		DurationMS: run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
		Summary:    run.Summary,
		StageCount: len(run.Stages),
		DetailsURL: run.DetailsURL,
	}
	if failed, ok := run.FirstFailedStage(); ok {
		resp.FailedAt = failed.Name
	}
	return resp
}

func toRunResponse(run model.RunResult) RunResponse {
	stages := make([]StageResponse, 0, len(run.Stages))
	for _, s := range run.Stages {
		stages = append(stages, StageResponse{
			Name:       s.Name,
			Command:    s.Command,
			Success:    s.Success,
			Output:     s.Output,
			DurationMS: s.Duration.Milliseconds(),
		})
	}

	return RunResponse{
		RunSummaryResponse: toRunSummaryResponse(run),
		Stages:             stages,
	}
}

func toCombinedStatusResponse(run model.RunResult, cs *model.CombinedStatus) CombinedStatusResponse {
	resp := CombinedStatusResponse{
		RunID:       run.RunID,
		CommitSHA:   run.CommitSHA,
		LocalStatus: string(run.Status),
		Statuses:    []CommitStatusResponse{},
	}
	if cs == nil {
		return resp
	}

	resp.State = cs.State
	for _, s := range cs.Statuses {
		resp.Statuses = append(resp.Statuses, CommitStatusResponse{
			Context:     s.Context,
			State:       s.State,
			Description: s.Description,
			TargetURL:   s.TargetURL,
		})
	}
	return resp
}
