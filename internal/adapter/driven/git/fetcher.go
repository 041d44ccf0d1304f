// Package git materialises a commit into a workspace using go-git.
package git

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/ericfisherdev/basicci/internal/domain/model"
	"github.com/ericfisherdev/basicci/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SourceFetcher = (*Fetcher)(nil)

// tokenUser is the username GitHub expects alongside an installation or
// personal access token in HTTP basic auth.
const tokenUser = "x-access-token"

// Fetcher implements driven.SourceFetcher.
type Fetcher struct {
	token  string
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. token, when non-empty, authenticates clones of
// http(s) remotes.
func NewFetcher(token string, logger *slog.Logger) *Fetcher {
	return &Fetcher{token: token, logger: logger}
}

// Fetch clones repoURL into dir and checks out commitSHA with a detached HEAD.
// Errors wrap model.ErrFetchFailed and carry model.KindInfra.
func (f *Fetcher) Fetch(ctx context.Context, repoURL, commitSHA, dir string) error {
	if err := f.fetch(ctx, repoURL, commitSHA, dir); err != nil {
		return model.NewError(model.KindInfra, "fetch source", err)
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, repoURL, commitSHA, dir string) error {
	f.logger.Info("cloning repository", "url", repoURL, "commit", commitSHA, "dir", dir)

	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:  repoURL,
		Auth: f.authFor(repoURL),
	})
	if err != nil {
		return fmt.Errorf("%w: clone %s: %v", model.ErrFetchFailed, repoURL, err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(commitSHA))
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", model.ErrFetchFailed, commitSHA, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: open worktree: %v", model.ErrFetchFailed, err)
	}

	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("%w: checkout %s: %v", model.ErrFetchFailed, commitSHA, err)
	}

	f.logger.Debug("checked out commit", "commit", hash.String())
	return nil
}

func (f *Fetcher) authFor(repoURL string) transport.AuthMethod {
	if f.token == "" {
		return nil
	}
	lower := strings.ToLower(repoURL)
	if !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "http://") {
		return nil
	}
	return &githttp.BasicAuth{Username: tokenUser, Password: f.token}
}
