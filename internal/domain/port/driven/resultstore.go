// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// ErrRunNotFound indicates no result exists for the requested run id.
var ErrRunNotFound = errors.New("run not found")

// ResultStore defines the driven port for run result persistence.
// One record per run id; records are written once and never updated.
type ResultStore interface {
	// Save persists a copy of result keyed by result.RunID.
	Save(ctx context.Context, result model.RunResult) error

	// Get returns the result for runID, or ErrRunNotFound.
	Get(ctx context.Context, runID string) (model.RunResult, error)

	// ListAll returns every readable result, newest StartedAt first. A missing
	// store is an empty list, not an error.
	ListAll(ctx context.Context) ([]model.RunResult, error)
}
