// Package bootstrap wires configuration into the adapters and services that
// both the server and the one-shot runner need.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ericfisherdev/basicci/internal/adapter/driven/filestore"
	gitadapter "github.com/ericfisherdev/basicci/internal/adapter/driven/git"
	githubadapter "github.com/ericfisherdev/basicci/internal/adapter/driven/github"
	"github.com/ericfisherdev/basicci/internal/adapter/driven/pipelinefile"
	"github.com/ericfisherdev/basicci/internal/adapter/driven/shell"
	sqliteadapter "github.com/ericfisherdev/basicci/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/basicci/internal/adapter/driven/workspace"
	"github.com/ericfisherdev/basicci/internal/application"
	"github.com/ericfisherdev/basicci/internal/config"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Options adjusts what Build wires.
type Options struct {
	// DisableNotify skips the commit status callback.
	DisableNotify bool
}

// Components are the long-lived objects of one process.
type Components struct {
	Registry     *prometheus.Registry
	Metrics      *application.Metrics
	Store        driven.ResultStore
	GitHub       *githubadapter.Client
	Orchestrator *application.Orchestrator
	Tasks        *application.TaskService

	closers []func() error
}

// Build constructs every component described by cfg.
func Build(cfg *config.Config, logger *slog.Logger, opts Options) (*Components, error) {
	c := &Components{Registry: prometheus.NewRegistry()}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = application.NewMetrics(c.Registry)

	store, err := c.openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Store = store

	workspaces, err := workspace.NewManager(cfg.WorkspaceRoot)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	gh, err := githubadapter.NewClient(cfg.GitHubToken, cfg.StatusContext, cfg.GitHubAPIURL)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create github client: %w", err)
	}
	c.GitHub = gh

	var notifier driven.StatusNotifier = gh
	if opts.DisableNotify {
		notifier = nil
	}

	c.Orchestrator = application.NewOrchestrator(application.OrchestratorDeps{
		Workspaces: workspaces,
		Fetcher:    gitadapter.NewFetcher(cfg.GitHubToken, logger),
		Loader:     pipelinefile.NewLoader(cfg.PipelinePath),
		Stages:     application.NewStageRunner(shell.NewExecutor(), c.Metrics, logger),
		Store:      store,
		Notifier:   notifier,
		Metrics:    c.Metrics,
		DetailsURL: cfg.DetailsURL,
	}, logger)

	c.Tasks = application.NewTaskService(application.NewRunIDGenerator(cfg.RunIDLength), cfg.RepoURL)

	return c, nil
}

func (c *Components) openStore(cfg *config.Config, logger *slog.Logger) (driven.ResultStore, error) {
	switch cfg.ResultBackend {
	case config.BackendSQLite:
		db, err := sqliteadapter.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open result database: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		logger.Info("result store opened", "backend", cfg.ResultBackend, "path", db.Path())
		return sqliteadapter.NewRunRepo(db), nil
	default:
		logger.Info("result store opened", "backend", config.BackendFile, "path", cfg.ResultsDir)
		return filestore.NewStore(cfg.ResultsDir, logger), nil
	}
}

// Close releases resources held by the components.
func (c *Components) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
