// Package application holds the run use cases and the orchestrator that ties
// a run together.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Summaries used for verdicts that do not carry an error message.
const (
	SummaryPassed   = "pipeline ran without errors"
	SummaryNoStages = "no stages defined; nothing to run"
)

// OrchestratorDeps groups the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Workspaces driven.WorkspaceManager
	Fetcher    driven.SourceFetcher
	Loader     driven.PipelineLoader
	Stages     *StageRunner
	Store      driven.ResultStore
	Notifier   driven.StatusNotifier // nil disables notification.
	Metrics    *Metrics              // may be nil.

	// DetailsURL builds the link attached to the commit status. nil leaves
	// RunResult.DetailsURL empty.
	DetailsURL func(runID string) string
}

// Orchestrator drives one Task through its whole lifecycle: workspace, fetch,
// pipeline load, stages, persistence, notification and cleanup.
type Orchestrator struct {
	deps   OrchestratorDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps OrchestratorDeps, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{deps: deps, logger: logger, now: time.Now}
}

// persistTimeout bounds Save and Notify once the run itself is over.
const persistTimeout = 30 * time.Second

// Run executes task and returns its result. The result is always populated,
// even when the returned error is non-nil: errors only report persistence
// (Infra kind) and notification (Notify kind) problems, never the verdict.
//
// Persistence and notification run on a context detached from ctx, so a
// cancelled run still records and reports its verdict.
func (o *Orchestrator) Run(ctx context.Context, task model.Task) (model.RunResult, error) {
	log := o.logger.With("run_id", task.RunID, "commit", task.CommitSHA, "branch", task.Branch)

	result := model.RunResult{
		RunID:         task.RunID,
		RepositoryURL: task.RepositoryURL,
		Branch:        task.Branch,
		CommitSHA:     task.CommitSHA,
		StartedAt:     o.now().UTC(),
		Stages:        []model.StageResult{},
	}
	if o.deps.DetailsURL != nil {
		result.DetailsURL = o.deps.DetailsURL(task.RunID)
	}

	o.deps.Metrics.runStarted()
	log.Info("run started")

	cause := o.execute(ctx, task, &result, log)
	result.Status, result.Summary = verdict(cause, len(result.Stages))
	if !result.Status.IsTerminal() {
		// pending never leaves the orchestrator.
		log.Error("run ended without a terminal status", "status", result.Status)
		result.Status = model.RunStatusError
	}

	result.FinishedAt = o.now().UTC()
	o.deps.Metrics.runFinished(result.Status, result.FinishedAt.Sub(result.StartedAt))
	log.Info("run finished", "status", result.Status, "summary", result.Summary, "kind", model.KindOf(cause))

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	var errs []error
	if err := o.deps.Store.Save(finishCtx, result.Clone()); err != nil {
		log.Error("failed to persist run result", "error", err)
		errs = append(errs, model.NewError(model.KindInfra, "persist result", err))
	}

	if o.deps.Notifier != nil {
		if err := o.deps.Notifier.Notify(finishCtx, result.Clone()); err != nil {
			o.deps.Metrics.notifyFailed()
			log.Error("failed to notify commit status", "error", err)
			errs = append(errs, model.NewError(model.KindNotify, "notify status", err))
		}
	}

	return result, errors.Join(errs...)
}

// execute acquires the workspace, fetches, loads the pipeline and runs the
// stages, filling in result.Stages. It returns the tagged error that ended the
// run early or failed it, or nil. The workspace is released before it
// returns, on every path.
func (o *Orchestrator) execute(ctx context.Context, task model.Task, result *model.RunResult, log *slog.Logger) error {
	dir, err := o.deps.Workspaces.Acquire(task.RunID)
	if err != nil {
		err = tag(model.KindInfra, "acquire workspace", err)
		log.Error("failed to acquire workspace", "error", err)
		return err
	}
	defer func() {
		if err := o.deps.Workspaces.Release(dir); err != nil {
			log.Warn("failed to release workspace", "path", dir, "error", err)
		}
	}()

	if err := o.deps.Fetcher.Fetch(ctx, task.CloneURL, task.CommitSHA, dir); err != nil {
		err = tag(model.KindInfra, "fetch source", err)
		log.Error("failed to fetch source", "error", err)
		return err
	}

	def, err := o.deps.Loader.Load(ctx)
	if err != nil {
		err = tag(model.KindConfig, "load pipeline", err)
		log.Error("failed to load pipeline definition", "error", err)
		return err
	}

	log.Info("pipeline loaded", "project", def.Project, "stages", len(def.Stages))
	result.Stages = o.deps.Stages.RunStages(ctx, dir, def, taskEnv(task))

	if failed, ok := result.FirstFailedStage(); ok {
		return model.NewError(model.KindStage, "", fmt.Errorf("stage %s failed", failed.Name))
	}
	return nil
}

// verdict maps the error that ended a run onto its status and summary.
// Config and Stage errors judge the code under test; anything else is an
// environmental error.
func verdict(cause error, stages int) (model.RunStatus, string) {
	if cause == nil {
		if stages == 0 {
			return model.RunStatusSuccess, SummaryNoStages
		}
		return model.RunStatusSuccess, SummaryPassed
	}

	switch model.KindOf(cause) {
	case model.KindConfig, model.KindStage:
		return model.RunStatusFailure, cause.Error()
	default:
		return model.RunStatusError, cause.Error()
	}
}

// tag wraps err with kind and op unless an adapter already tagged it.
func tag(kind model.ErrorKind, op string, err error) error {
	if model.KindOf(err) != model.KindUnknown {
		return err
	}
	return model.NewError(kind, op, err)
}

// taskEnv is the environment exposed to stage commands.
func taskEnv(task model.Task) []string {
	return []string{
		"CI=true",
		"BASICCI_RUN_ID=" + task.RunID,
		"BASICCI_COMMIT_SHA=" + task.CommitSHA,
		"BASICCI_BRANCH=" + task.Branch,
	}
}
