package driven

import "context"

// SourceFetcher defines the driven port for materialising a commit on disk.
type SourceFetcher interface {
	// Fetch clones repoURL into dir and checks out commitSHA. Any failure is
	// reported wrapped around model.ErrFetchFailed.
	Fetch(ctx context.Context, repoURL, commitSHA, dir string) error
}
