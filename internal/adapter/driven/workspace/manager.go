// Package workspace manages the per-run working directories.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.WorkspaceManager = (*Manager)(nil)

// Manager implements driven.WorkspaceManager. Every directory it creates or
// removes lies strictly inside root.
type Manager struct {
	root string
}

// NewManager creates the root directory if needed and returns a Manager for
// it. The root is resolved to an absolute, symlink-free path.
func NewManager(root string) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("workspace root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	return &Manager{root: resolved}, nil
}

// Root returns the resolved workspace root.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates <root>/<runID> and returns its path. Calling it twice for
// the same id returns the same directory. Errors carry model.KindInfra.
func (m *Manager) Acquire(runID string) (string, error) {
	if runID == "" {
		return "", infraError("acquire workspace", fmt.Errorf("%w: empty run id", model.ErrPathOutsideWorkspace))
	}

	dir, err := m.confine(filepath.Join(m.root, runID))
	if err != nil {
		return "", infraError("acquire workspace", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", infraError("acquire workspace", err)
	}

	// A pre-existing symlink at dir could point outside the root.
	if real, err := filepath.EvalSymlinks(dir); err != nil {
		return "", infraError("acquire workspace", err)
	} else if _, err := m.confine(real); err != nil {
		return "", infraError("acquire workspace", err)
	}

	return dir, nil
}

// Release removes the directory tree at path. A missing path is not an error.
func (m *Manager) Release(path string) error {
	dir, err := m.confine(path)
	if err != nil {
		return infraError("release workspace", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return infraError("release workspace", err)
	}
	return nil
}

func infraError(op string, err error) error {
	return model.NewError(model.KindInfra, op, err)
}

// confine cleans path and checks that it names a descendant of the root. The
// root itself is rejected.
func (m *Manager) confine(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(m.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", model.ErrPathOutsideWorkspace, path)
	}
	return abs, nil
}
