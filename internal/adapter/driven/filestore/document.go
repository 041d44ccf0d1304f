package filestore

import (
	"fmt"
	"time"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// runDocument is the persisted JSON shape of a run result.
type runDocument struct {
	RunID      string          `json:"run_id"`
	RepoURL    string          `json:"repo_url"`
	Branch     string          `json:"branch"`
	CommitSHA  string          `json:"commit_sha"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Stages     []stageDocument `json:"stages"`
	Summary    string          `json:"summary"`
	DetailsURL string          `json:"details_url,omitempty"`
}

type stageDocument struct {
	Name       string `json:"name"`
	Command    string `json:"command"`
	Success    bool   `json:"success"`
	Output     string `json:"output"`
	DurationNS int64  `json:"duration_ns"`
}

func toDocument(r model.RunResult) runDocument {
	stages := make([]stageDocument, 0, len(r.Stages))
	for _, s := range r.Stages {
		stages = append(stages, stageDocument{
			Name:       s.Name,
			Command:    s.Command,
			Success:    s.Success,
			Output:     s.Output,
			DurationNS: s.Duration.Nanoseconds(),
		})
	}

	return runDocument{
		RunID:      r.RunID,
		RepoURL:    r.RepositoryURL,
		Branch:     r.Branch,
		CommitSHA:  r.CommitSHA,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Stages:     stages,
		Summary:    r.Summary,
		DetailsURL: r.DetailsURL,
	}
}

func (d runDocument) toModel() (model.RunResult, error) {
	status, ok := model.ParseRunStatus(d.Status)
	if !ok {
		return model.RunResult{}, fmt.Errorf("unknown status %q in run %s", d.Status, d.RunID)
	}

	stages := make([]model.StageResult, 0, len(d.Stages))
	for _, s := range d.Stages {
		stages = append(stages, model.StageResult{
			Name:     s.Name,
			Command:  s.Command,
			Success:  s.Success,
			Output:   s.Output,
			Duration: time.Duration(s.DurationNS),
		})
	}

	return model.RunResult{
		RunID:         d.RunID,
		RepositoryURL: d.RepoURL,
		Branch:        d.Branch,
		CommitSHA:     d.CommitSHA,
		Status:        status,
		StartedAt:     d.StartedAt,
		FinishedAt:    d.FinishedAt,
		Stages:        stages,
		Summary:       d.Summary,
		DetailsURL:    d.DetailsURL,
	}, nil
}
