package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// StageRunner executes the stages of a pipeline definition in declared order.
// Every stage runs even after an earlier one fails; the orchestrator derives
// the verdict from the first failure. Stages are never retried.
type StageRunner struct {
	executor driven.CommandExecutor
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewStageRunner creates a StageRunner. metrics may be nil.
func NewStageRunner(executor driven.CommandExecutor, metrics *Metrics, logger *slog.Logger) *StageRunner {
	return &StageRunner{
		executor: executor,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// RunStages runs every stage of def inside dir with env appended to the
// process environment. It returns one result per stage, in order.
func (r *StageRunner) RunStages(ctx context.Context, dir string, def model.PipelineDefinition, env []string) []model.StageResult {
	results := make([]model.StageResult, 0, len(def.Stages))

	for i, stage := range def.Stages {
		r.logger.Info("running stage",
			"stage", stage.Name,
			"index", i+1,
			"total", len(def.Stages),
		)

		start := r.now()
		res, err := r.executor.Run(ctx, dir, stage.Command, env)
		elapsed := r.now().Sub(start)

		sr := model.StageResult{
			Name:     stage.Name,
			Command:  stage.Command,
			Success:  err == nil && res.Succeeded(),
			Output:   combineOutput(res.Stdout, res.Stderr),
			Duration: elapsed,
		}
		if err != nil {
			sr.Output = appendLine(sr.Output, "error: "+err.Error())
			r.logger.Error("stage could not be executed", "stage", stage.Name, "error", err)
		} else {
			r.logger.Info("stage finished",
				"stage", stage.Name,
				"exit_code", res.ExitCode,
				"success", sr.Success,
				"duration", elapsed,
			)
		}

		r.metrics.stageFinished(sr.Success, elapsed)
		results = append(results, sr)
	}

	return results
}

// combineOutput joins stdout and stderr, stdout first.
func combineOutput(stdout, stderr string) string {
	switch {
	case stderr == "":
		return stdout
	case stdout == "":
		return stderr
	default:
		return appendLine(stdout, stderr)
	}
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line
}
