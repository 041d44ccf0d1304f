package driven

import (
	"context"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// CommandExecutor defines the driven port for running one shell-level command.
type CommandExecutor interface {
	// Run executes command in dir and captures its output. A nonzero exit is
	// reported through CommandResult.ExitCode, never as an error; the error
	// return is reserved for commands that could not be run at all.
	Run(ctx context.Context, dir, command string, env []string) (model.CommandResult, error)
}
