package application

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

const branchRefPrefix = "refs/heads/"

// TaskService turns accepted push events into Tasks. It does not execute them.
type TaskService struct {
	ids         *RunIDGenerator
	allowedRepo string // Normalised; empty allows any repository.
}

// NewTaskService creates a TaskService. When allowedRepoURL is non-empty only
// pushes to that repository produce tasks.
func NewTaskService(ids *RunIDGenerator, allowedRepoURL string) *TaskService {
	return &TaskService{
		ids:         ids,
		allowedRepo: normalizeRepoURL(allowedRepoURL),
	}
}

// CreateTask validates event and derives a Task from it.
func (s *TaskService) CreateTask(event model.PushEvent) (model.Task, error) {
	branch, err := BranchFromRef(event.Ref)
	if err != nil {
		return model.Task{}, err
	}

	if s.allowedRepo != "" && normalizeRepoURL(event.RepositoryURL) != s.allowedRepo &&
		normalizeRepoURL(event.CloneURL) != s.allowedRepo {
		return model.Task{}, fmt.Errorf("%w: %s", model.ErrRepositoryNotAllowed, event.RepositoryURL)
	}

	cloneURL := event.CloneURL
	if cloneURL == "" {
		cloneURL = event.RepositoryURL
	}

	return model.Task{
		RunID:         s.ids.Generate(event.After),
		RepositoryURL: event.RepositoryURL,
		CloneURL:      cloneURL,
		Branch:        branch,
		CommitSHA:     event.After,
	}, nil
}

// NewRunID returns a fresh run id without creating a task. commit may be empty.
func (s *TaskService) NewRunID(commit string) string {
	return s.ids.Generate(commit)
}

// BranchFromRef strips the required "refs/heads/" prefix from ref. Tags and
// any other ref shape fail with model.ErrInvalidRef.
func BranchFromRef(ref string) (string, error) {
	branch, ok := strings.CutPrefix(ref, branchRefPrefix)
	if !ok || branch == "" {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidRef, ref)
	}
	return branch, nil
}

// normalizeRepoURL reduces equivalent repository URLs to one form: lowercase
// scheme and host, no trailing slash, no ".git" suffix. SCP-style SSH URLs
// (git@host:owner/repo) are rewritten to host/owner/repo.
func normalizeRepoURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if at := strings.Index(s, "@"); at >= 0 && !strings.Contains(s, "://") {
		if host, path, ok := strings.Cut(s[at+1:], ":"); ok {
			s = strings.ToLower(host) + "/" + path
		}
	} else if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = strings.ToLower(u.Hostname()) + u.Path
	}

	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, ".git")
	return s
}
