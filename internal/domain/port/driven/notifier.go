package driven

import (
	"context"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// StatusNotifier defines the driven port for reporting a verdict back to the
// source-control host. Exactly one outbound call per invocation, no retry.
type StatusNotifier interface {
	Notify(ctx context.Context, result model.RunResult) error
}

// StatusReader defines the driven port for reading the commit status the
// source-control host currently shows. It is intentionally separate from
// StatusNotifier so the write path never goes through read-side caching.
type StatusReader interface {
	FetchCombinedStatus(ctx context.Context, repoURL, commitSHA string) (*model.CombinedStatus, error)
}
