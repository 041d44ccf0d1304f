package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockExecutor returns scripted results keyed by command.
type mockExecutor struct {
	mu       sync.Mutex
	results  map[string]model.CommandResult
	errs     map[string]error
	commands []string
	envs     [][]string
	dirs     []string
}

func (m *mockExecutor) Run(_ context.Context, dir, command string, env []string) (model.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, command)
	m.envs = append(m.envs, env)
	m.dirs = append(m.dirs, dir)
	if err, ok := m.errs[command]; ok {
		return model.CommandResult{ExitCode: -1}, err
	}
	return m.results[command], nil
}

type mockWorkspaces struct {
	acquireErr error
	releaseErr error
	acquired   []string
	released   []string
}

func (m *mockWorkspaces) Acquire(runID string) (string, error) {
	if m.acquireErr != nil {
		return "", m.acquireErr
	}
	dir := "/work/" + runID
	m.acquired = append(m.acquired, dir)
	return dir, nil
}

func (m *mockWorkspaces) Release(path string) error {
	m.released = append(m.released, path)
	return m.releaseErr
}

type mockFetcher struct {
	err    error
	called bool
	repo   string
	sha    string
	dir    string
}

func (m *mockFetcher) Fetch(_ context.Context, repoURL, commitSHA, dir string) error {
	m.called = true
	m.repo, m.sha, m.dir = repoURL, commitSHA, dir
	return m.err
}

type mockLoader struct {
	def model.PipelineDefinition
	err error
}

func (m *mockLoader) Load(_ context.Context) (model.PipelineDefinition, error) {
	return m.def, m.err
}

type mockStore struct {
	mu      sync.Mutex
	saveErr error
	results map[string]model.RunResult
	saves   int
}

func newMockStore() *mockStore {
	return &mockStore{results: make(map[string]model.RunResult)}
}

// Save fails on a done context, as a database transaction would.
func (m *mockStore) Save(ctx context.Context, result model.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.results[result.RunID] = result.Clone()
	return nil
}

func (m *mockStore) Get(_ context.Context, runID string) (model.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[runID]
	if !ok {
		return model.RunResult{}, driven.ErrRunNotFound
	}
	return r.Clone(), nil
}

func (m *mockStore) ListAll(_ context.Context) ([]model.RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RunResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

type mockNotifier struct {
	mu       sync.Mutex
	err      error
	notified []model.RunResult
	// storedAtNotify records whether the store already held the run when
	// Notify was called.
	store          *mockStore
	storedAtNotify []bool
}

func (m *mockNotifier) Notify(ctx context.Context, result model.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.notified = append(m.notified, result)
	if m.store != nil {
		_, err := m.store.Get(ctx, result.RunID)
		m.storedAtNotify = append(m.storedAtNotify, err == nil)
	}
	return m.err
}

var errBoom = errors.New("boom")
