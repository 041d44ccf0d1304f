package driven

// WorkspaceManager defines the driven port for per-run working directories.
type WorkspaceManager interface {
	// Acquire creates (or reuses) the directory for runID under the configured
	// root and returns its path. Paths escaping the root fail with
	// model.ErrPathOutsideWorkspace.
	Acquire(runID string) (string, error)

	// Release removes the directory tree at path. A missing path is not an error.
	Release(path string) error
}
