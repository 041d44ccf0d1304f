// Package model holds the domain types of a CI run.
package model

import "time"

// StageResult is the outcome of one executed stage.
type StageResult struct {
	Name     string
	Command  string
	Success  bool
	Output   string // stdout followed by stderr.
	Duration time.Duration
}

// RunResult is the single record produced by one run. It is created at the end
// of orchestration, persisted once and never updated in place.
type RunResult struct {
	RunID         string
	RepositoryURL string
	Branch        string
	CommitSHA     string
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    time.Time
	Stages        []StageResult
	Summary       string
	DetailsURL    string // Empty when no public URL is configured.
}

// IsSuccess reports whether the run passed.
func (r RunResult) IsSuccess() bool {
	return r.Status == RunStatusSuccess
}

// FirstFailedStage returns the first stage that did not succeed.
func (r RunResult) FirstFailedStage() (StageResult, bool) {
	for _, s := range r.Stages {
		if !s.Success {
			return s, true
		}
	}
	return StageResult{}, false
}

// Clone returns a deep copy so stores and notifiers never share the Stages
// backing array with the orchestrator.
func (r RunResult) Clone() RunResult {
	out := r
	if r.Stages != nil {
		out.Stages = make([]StageResult, len(r.Stages))
		copy(out.Stages, r.Stages)
	}
	return out
}
