// Package filestore persists run results as one JSON document per run:
// <root>/<runId>/taskResult.json.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ResultStore = (*Store)(nil)

// DocumentName is the file name of the result document inside a run directory.
const DocumentName = "taskResult.json"

// Store implements driven.ResultStore on the local filesystem.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates a Store rooted at root. The directory is created lazily on
// the first Save.
func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Save writes result to <root>/<runId>/taskResult.json. The document is
// written to a temporary file and renamed into place.
func (s *Store) Save(_ context.Context, result model.RunResult) error {
	dir, err := s.runDir(result.RunID)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	data, err := json.MarshalIndent(toDocument(result), "", "  ")
	if err != nil {
		return fmt.Errorf("encode result %s: %w", result.RunID, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	if err := atomic.WriteFile(filepath.Join(dir, DocumentName), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write result %s: %w", result.RunID, err)
	}
	return nil
}

// Get reads the result for runID.
func (s *Store) Get(_ context.Context, runID string) (model.RunResult, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return model.RunResult{}, driven.ErrRunNotFound
	}

	result, err := readDocument(filepath.Join(dir, DocumentName))
	if errors.Is(err, fs.ErrNotExist) {
		return model.RunResult{}, driven.ErrRunNotFound
	}
	if err != nil {
		return model.RunResult{}, fmt.Errorf("get result %s: %w", runID, err)
	}
	return result, nil
}

// ListAll reads every run directory under the root. Entries that are not
// directories, lack a document or hold an undecodable one are skipped.
func (s *Store) ListAll(_ context.Context) ([]model.RunResult, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.RunResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	results := make([]model.RunResult, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		result, err := readDocument(filepath.Join(s.root, entry.Name(), DocumentName))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("skipping unreadable result", "run_id", entry.Name(), "error", err)
			}
			continue
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	return results, nil
}

// runDir maps runID onto its directory, refusing ids that would leave root.
func (s *Store) runDir(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." ||
		strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(s.root, runID), nil
}

func readDocument(path string) (model.RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RunResult{}, err
	}

	var doc runDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.RunResult{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc.toModel()
}
