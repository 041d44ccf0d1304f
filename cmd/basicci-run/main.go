// Command basicci-run executes the configured pipeline once for a single
// commit, without the webhook server. It reads the same BASICCI_* environment
// as the server and exits non-zero unless the run succeeds.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/basicci/internal/bootstrap"
	"github.com/ericfisherdev/basicci/internal/config"
	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
	exitError   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("basicci-run", pflag.ContinueOnError)
	commit := flags.String("commit", "", "commit SHA to build (required)")
	branch := flags.String("branch", "main", "branch the commit belongs to")
	repo := flags.String("repo", "", "repository URL (defaults to BASICCI_REPO_URL)")
	noNotify := flags.Bool("no-notify", false, "do not post a commit status")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitSuccess
		}
		return exitError
	}
	if *commit == "" {
		fmt.Fprintln(os.Stderr, "basicci-run: --commit is required")
		flags.PrintDefaults()
		return exitError
	}

	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("fatal error", "error", err)
		return exitError
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	repoURL := cfg.RepoURL
	if *repo != "" {
		repoURL = *repo
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Wire components.
	components, err := bootstrap.Build(cfg, logger, bootstrap.Options{DisableNotify: *noNotify})
	if err != nil {
		logger.Error("fatal error", "error", err)
		return exitError
	}
	defer func() {
		if closeErr := components.Close(); closeErr != nil {
			logger.Error("error closing components", "error", closeErr)
		}
	}()

	// 4. Build the task the same way a push delivery would.
	task, err := components.Tasks.CreateTask(model.PushEvent{
		Ref:           "refs/heads/" + *branch,
		After:         *commit,
		RepositoryURL: repoURL,
	})
	if err != nil {
		logger.Error("invalid task", "error", err)
		return exitError
	}

	// 5. Run to completion.
	result, err := components.Orchestrator.Run(ctx, task)
	if err != nil {
		logger.Warn("run finished with errors", "run_id", task.RunID, "error", err)
	}

	fmt.Printf("%s %s: %s\n", result.RunID, result.Status, result.Summary)
	switch {
	case result.IsSuccess():
		return exitSuccess
	case result.Status == model.RunStatusFailure:
		return exitFailure
	default:
		return exitError
	}
}
