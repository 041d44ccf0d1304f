package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/basicci/internal/adapter/driven/filestore"
	sqliteadapter "github.com/ericfisherdev/basicci/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/basicci/internal/config"
	"github.com/ericfisherdev/basicci/internal/domain/model"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		WebhookSecret: "secret",
		PipelinePath:  filepath.Join(dir, "pipeline.yaml"),
		GitHubToken:   "token",
		RepoURL:       "https://github.com/octocat/hello-world",
		ResultsDir:    filepath.Join(dir, "results"),
		WorkspaceRoot: filepath.Join(dir, "ws"),
		ResultBackend: backend,
		DBPath:        filepath.Join(dir, "results", "basicci.db"),
		RunIDLength:   16,
		StatusContext: "basic-ci",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild_FileBackend(t *testing.T) {
	c, err := Build(testConfig(t, config.BackendFile), discardLogger(), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.IsType(t, &filestore.Store{}, c.Store)
	assert.NotNil(t, c.Orchestrator)
	assert.NotNil(t, c.GitHub)

	families, err := c.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestBuild_SQLiteBackend(t *testing.T) {
	c, err := Build(testConfig(t, config.BackendSQLite), discardLogger(), Options{})
	require.NoError(t, err)

	assert.IsType(t, &sqliteadapter.RunRepo{}, c.Store)
	require.NoError(t, c.Store.Save(context.Background(), model.RunResult{
		RunID:      "run1",
		Status:     model.RunStatusSuccess,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}))
	assert.NoError(t, c.Close())
}

func TestBuild_UnreachableSourceEndsInError(t *testing.T) {
	c, err := Build(testConfig(t, config.BackendFile), discardLogger(), Options{DisableNotify: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	task, err := c.Tasks.CreateTask(model.PushEvent{
		Ref:           "refs/heads/main",
		After:         "0123456789abcdef0123456789abcdef01234567",
		RepositoryURL: "https://github.com/octocat/hello-world",
		CloneURL:      t.TempDir(),
	})
	require.NoError(t, err)
	assert.Len(t, task.RunID, 16)

	// The clone of an empty directory fails before the pipeline is read.
	result, err := c.Orchestrator.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, result.Status)

	stored, err := c.Store.Get(context.Background(), task.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusError, stored.Status)
}
