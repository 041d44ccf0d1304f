package application

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// TaskRunner executes one task to completion.
type TaskRunner interface {
	Run(ctx context.Context, task model.Task) (model.RunResult, error)
}

// Dispatcher starts each accepted task in its own goroutine. Runs share no
// mutable state and are detached from the context that submitted them.
type Dispatcher struct {
	runner TaskRunner
	base   context.Context
	logger *slog.Logger
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewDispatcher creates a Dispatcher. Runs inherit values, but not
// cancellation, from base.
func NewDispatcher(base context.Context, runner TaskRunner, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		runner: runner,
		base:     context.WithoutCancel(base),
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Submit starts task in the background and returns immediately.
func (d *Dispatcher) Submit(task model.Task) {
	d.wg.Add(1)
	d.track(task.RunID, true)
	go func() {
		defer d.wg.Done()
		defer d.track(task.RunID, false)
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("run panicked", "run_id", task.RunID, "panic", r)
			}
		}()

		result, err := d.runner.Run(d.base, task)
		if err != nil {
			d.logger.Error("run completed with errors",
				"run_id", task.RunID,
				"status", result.Status,
				"error", err,
			)
			return
		}
		d.logger.Info("run completed", "run_id", task.RunID, "status", result.Status)
	}()
}

// Wait blocks until every submitted run has finished or ctx is done. It
// returns ctx.Err() in the latter case.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns the ids of runs that have not finished, sorted.
func (d *Dispatcher) InFlight() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.inFlight))
	for id := range d.inFlight {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (d *Dispatcher) track(runID string, running bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if running {
		d.inFlight[runID] = struct{}{}
	} else {
		delete(d.inFlight, runID)
	}
}
