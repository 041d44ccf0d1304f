package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

type orchestratorFixture struct {
	exec       *mockExecutor
	workspaces *mockWorkspaces
	fetcher    *mockFetcher
	loader     *mockLoader
	store      *mockStore
	notifier   *mockNotifier
	metrics    *Metrics
	orch       *Orchestrator
}

func newOrchestratorFixture(def model.PipelineDefinition) *orchestratorFixture {
	f := &orchestratorFixture{
		exec:       &mockExecutor{results: map[string]model.CommandResult{}},
		workspaces: &mockWorkspaces{},
		fetcher:    &mockFetcher{},
		loader:     &mockLoader{def: def},
		store:      newMockStore(),
		metrics:    NewMetrics(prometheus.NewRegistry()),
	}
	f.notifier = &mockNotifier{store: f.store}
	f.orch = NewOrchestrator(OrchestratorDeps{
		Workspaces: f.workspaces,
		Fetcher:    f.fetcher,
		Loader:     f.loader,
		Stages:     NewStageRunner(f.exec, f.metrics, discardLogger()),
		Store:      f.store,
		Notifier:   f.notifier,
		Metrics:    f.metrics,
		DetailsURL: func(id string) string { return "https://ci.example.com/api/v1/runs/" + id },
	}, discardLogger())
	return f
}

func testTask() model.Task {
	return model.Task{
		RunID:         "run123456789",
		RepositoryURL: "https://github.com/octocat/hello-world",
		CloneURL:      "https://github.com/octocat/hello-world.git",
		Branch:        "main",
		CommitSHA:     testSHA,
	}
}

func TestOrchestrator_FirstFailingStageDecidesVerdict(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{Stages: []model.StageDefinition{
		{Name: "A", Command: "a"},
		{Name: "B", Command: "b"},
		{Name: "C", Command: "c"},
	}})
	f.exec.results["b"] = model.CommandResult{ExitCode: 1}

	result, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailure, result.Status)
	assert.Equal(t, "stage B failed", result.Summary)
	require.Len(t, result.Stages, 3)
	assert.True(t, result.Stages[0].Success)
	assert.False(t, result.Stages[1].Success)
	assert.True(t, result.Stages[2].Success)

	assert.Equal(t, "https://github.com/octocat/hello-world.git", f.fetcher.repo)
	assert.Equal(t, testSHA, f.fetcher.sha)
	assert.Equal(t, []string{"/work/run123456789"}, f.workspaces.released)

	stored, err := f.store.Get(context.Background(), "run123456789")
	require.NoError(t, err)
	assert.Equal(t, result, stored)

	require.Len(t, f.notifier.notified, 1)
	assert.Equal(t, []bool{true}, f.notifier.storedAtNotify)
	assert.Equal(t, model.RunStatusFailure, f.notifier.notified[0].Status)
}

func TestOrchestrator_AllStagesPass(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{Stages: []model.StageDefinition{
		{Name: "build", Command: "make"},
		{Name: "test", Command: "make test"},
	}})

	result, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, result.Status)
	assert.Equal(t, SummaryPassed, result.Summary)
	assert.Equal(t, "https://ci.example.com/api/v1/runs/run123456789", result.DetailsURL)
	assert.Equal(t, "run123456789", result.RunID)
	assert.Equal(t, "main", result.Branch)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
	assert.Contains(t, f.exec.envs[0], "BASICCI_RUN_ID=run123456789")
	assert.Contains(t, f.exec.envs[0], "BASICCI_COMMIT_SHA="+testSHA)
	assert.Contains(t, f.exec.envs[0], "BASICCI_BRANCH=main")
	assert.Contains(t, f.exec.envs[0], "CI=true")

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.runsTotal.WithLabelValues("success")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.runsInFlight), 0)
}

func TestOrchestrator_EmptyPipelineSucceeds(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{Project: "p"})

	result, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, result.Status)
	assert.Equal(t, SummaryNoStages, result.Summary)
	assert.Empty(t, result.Stages)
}

func TestOrchestrator_PipelineLoadFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", fmt.Errorf("%w: /etc/pipeline.yml", model.ErrPipelineNotFound)},
		{"invalid", fmt.Errorf("%w: yaml: line 3: mapping values are not allowed", model.ErrPipelineInvalid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture(model.PipelineDefinition{})
			f.loader.err = tt.err

			result, err := f.orch.Run(context.Background(), testTask())

			require.NoError(t, err)
			assert.Equal(t, model.RunStatusFailure, result.Status)
			assert.Equal(t, "load pipeline: "+tt.err.Error(), result.Summary)
			assert.NotNil(t, result.Stages)
			assert.Empty(t, result.Stages)
			assert.Empty(t, f.exec.commands)
			assert.Equal(t, []string{"/work/run123456789"}, f.workspaces.released)
			require.Len(t, f.notifier.notified, 1)
		})
	}
}

func TestOrchestrator_FetchFailure(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{Stages: []model.StageDefinition{{Name: "A", Command: "a"}}})
	f.fetcher.err = fmt.Errorf("%w: repository not found", model.ErrFetchFailed)

	result, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, result.Status)
	assert.Equal(t, "fetch source: fetch failed: repository not found", result.Summary)
	assert.Empty(t, result.Stages)
	assert.Empty(t, f.exec.commands)
	assert.Equal(t, []string{"/work/run123456789"}, f.workspaces.released)
	require.Len(t, f.notifier.notified, 1)
	assert.Equal(t, model.RunStatusError, f.notifier.notified[0].Status)
}

func TestOrchestrator_WorkspaceFailure(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{})
	f.workspaces.acquireErr = model.NewError(model.KindInfra, "acquire workspace", model.ErrPathOutsideWorkspace)

	result, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, result.Status)
	assert.Equal(t, "acquire workspace: path outside workspace", result.Summary)
	assert.NotNil(t, result.Stages)
	assert.Empty(t, result.Stages)
	assert.False(t, f.fetcher.called)
	assert.Empty(t, f.workspaces.released)
	assert.Equal(t, 1, f.store.saves)
}

func TestOrchestrator_ReleaseFailureIsNotFatal(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{})
	f.workspaces.releaseErr = errBoom

	result, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, result.Status)
}

func TestOrchestrator_NotifyFailureKeepsResult(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{Stages: []model.StageDefinition{{Name: "A", Command: "a"}}})
	f.notifier.err = errBoom

	result, err := f.orch.Run(context.Background(), testTask())

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, model.KindNotify, model.KindOf(err))
	assert.Equal(t, model.RunStatusSuccess, result.Status)

	stored, getErr := f.store.Get(context.Background(), result.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusSuccess, stored.Status)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.notifyFailures), 0)
}

func TestOrchestrator_SaveFailureStillNotifies(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{Stages: []model.StageDefinition{{Name: "A", Command: "a"}}})
	f.store.saveErr = errBoom

	result, err := f.orch.Run(context.Background(), testTask())

	require.Error(t, err)
	assert.Equal(t, model.KindInfra, model.KindOf(err))
	assert.Equal(t, model.RunStatusSuccess, result.Status)
	require.Len(t, f.notifier.notified, 1)
	assert.Equal(t, model.RunStatusSuccess, f.notifier.notified[0].Status)
}

func TestOrchestrator_NilNotifierSkipsNotification(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{})
	f.orch.deps.Notifier = nil

	_, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Empty(t, f.notifier.notified)
	assert.Equal(t, 1, f.store.saves)
}

func TestOrchestrator_UsesInjectedClock(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{})
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	calls := 0
	f.orch.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * time.Minute)
	}

	result, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, start, result.StartedAt)
	assert.Equal(t, start.Add(time.Minute), result.FinishedAt)
}

func TestOrchestrator_TaggedLoaderErrorKeepsItsText(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{})
	f.loader.err = model.NewError(model.KindConfig, "load pipeline", model.ErrPipelineInvalid)

	result, err := f.orch.Run(context.Background(), testTask())

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailure, result.Status)
	assert.Equal(t, "load pipeline: pipeline definition invalid", result.Summary)
}

func TestOrchestrator_CancelledRunIsStillPersistedAndReported(t *testing.T) {
	f := newOrchestratorFixture(model.PipelineDefinition{Stages: []model.StageDefinition{{Name: "A", Command: "a"}}})
	f.exec.errs = map[string]error{"a": context.Canceled}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.orch.Run(ctx, testTask())

	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailure, result.Status)

	stored, getErr := f.store.Get(context.Background(), result.RunID)
	require.NoError(t, getErr)
	assert.Equal(t, result, stored)
	require.Len(t, f.notifier.notified, 1)
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		name        string
		cause       error
		stages      int
		wantStatus  model.RunStatus
		wantSummary string
	}{
		{"passed", nil, 2, model.RunStatusSuccess, SummaryPassed},
		{"no stages", nil, 0, model.RunStatusSuccess, SummaryNoStages},
		{"stage", model.NewError(model.KindStage, "", errors.New("stage B failed")), 3, model.RunStatusFailure, "stage B failed"},
		{"config", model.NewError(model.KindConfig, "load pipeline", model.ErrPipelineNotFound), 0, model.RunStatusFailure, "load pipeline: pipeline definition not found"},
		{"infra", model.NewError(model.KindInfra, "fetch source", model.ErrFetchFailed), 0, model.RunStatusError, "fetch source: fetch failed"},
		{"untagged", errBoom, 0, model.RunStatusError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, summary := verdict(tt.cause, tt.stages)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantSummary, summary)
			assert.True(t, status.IsTerminal())
		})
	}
}

func TestOrchestrator_ExecuteTagsEachFailureDomain(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *orchestratorFixture)
		want  model.ErrorKind
	}{
		{"workspace", func(f *orchestratorFixture) { f.workspaces.acquireErr = errBoom }, model.KindInfra},
		{"fetch", func(f *orchestratorFixture) { f.fetcher.err = errBoom }, model.KindInfra},
		{"loader", func(f *orchestratorFixture) { f.loader.err = errBoom }, model.KindConfig},
		{"stage", func(f *orchestratorFixture) { f.exec.results["a"] = model.CommandResult{ExitCode: 2} }, model.KindStage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture(model.PipelineDefinition{Stages: []model.StageDefinition{{Name: "A", Command: "a"}}})
			tt.setup(f)
			result := model.RunResult{Stages: []model.StageResult{}}

			err := f.orch.execute(context.Background(), testTask(), &result, discardLogger())

			require.Error(t, err)
			assert.Equal(t, tt.want, model.KindOf(err))
		})
	}
}
