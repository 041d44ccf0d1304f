package git

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// initRepo creates a repository with two commits of README and returns its
// path and both commit hashes, oldest first.
func initRepo(t *testing.T) (string, []string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	sig := &object.Signature{Name: "CI", Email: "ci@example.com", When: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var hashes []string
	for _, content := range []string{"first\n", "second\n"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte(content), 0o644))
		_, err := wt.Add("README")
		require.NoError(t, err)
		h, err := wt.Commit("update readme", &gogit.CommitOptions{Author: sig})
		require.NoError(t, err)
		hashes = append(hashes, h.String())
	}
	return dir, hashes
}

func TestFetcher_ChecksOutRequestedCommit(t *testing.T) {
	src, hashes := initRepo(t)
	dst := filepath.Join(t.TempDir(), "ws")

	err := NewFetcher("", discardLogger()).Fetch(context.Background(), src, hashes[0], dst)

	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(dst, "README"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(content))

	repo, err := gogit.PlainOpen(dst)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, hashes[0], head.Hash().String())
}

func TestFetcher_UnknownCommit(t *testing.T) {
	src, _ := initRepo(t)

	err := NewFetcher("", discardLogger()).Fetch(context.Background(), src,
		"ffffffffffffffffffffffffffffffffffffffff", filepath.Join(t.TempDir(), "ws"))

	assert.ErrorIs(t, err, model.ErrFetchFailed)
	assert.Equal(t, model.KindInfra, model.KindOf(err))
}

func TestFetcher_UnreachableRepository(t *testing.T) {
	err := NewFetcher("", discardLogger()).Fetch(context.Background(),
		filepath.Join(t.TempDir(), "missing"), "0123456789abcdef0123456789abcdef01234567",
		filepath.Join(t.TempDir(), "ws"))

	assert.ErrorIs(t, err, model.ErrFetchFailed)
}

func TestFetcher_AuthOnlyForHTTP(t *testing.T) {
	f := NewFetcher("tok", discardLogger())

	auth, ok := f.authFor("https://github.com/o/r.git").(*githttp.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "x-access-token", auth.Username)
	assert.Equal(t, "tok", auth.Password)

	assert.Nil(t, f.authFor("git@github.com:o/r.git"))
	assert.Nil(t, f.authFor("/srv/repos/r"))
	assert.Nil(t, NewFetcher("", discardLogger()).authFor("https://github.com/o/r.git"))
}
