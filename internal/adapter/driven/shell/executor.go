// Package shell runs stage commands through the system shell.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommandExecutor = (*Executor)(nil)

// DefaultWaitDelay bounds how long Run waits for output pipes after the shell
// has exited or been killed.
const DefaultWaitDelay = 5 * time.Second

// Executor implements driven.CommandExecutor with "sh -c".
type Executor struct {
	shell     string
	waitDelay time.Duration
}

// NewExecutor creates an Executor that resolves "sh" via PATH.
func NewExecutor() *Executor {
	return &Executor{shell: "sh", waitDelay: DefaultWaitDelay}
}

// Run executes command in dir. The command gets its own process group so that
// cancelling ctx kills the shell together with everything it spawned.
func (e *Executor) Run(ctx context.Context, dir, command string, env []string) (model.CommandResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = e.waitDelay
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	err := cmd.Run()
	result := model.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("run command: %w", ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	result.ExitCode = -1
	return result, fmt.Errorf("run command: %w", err)
}
