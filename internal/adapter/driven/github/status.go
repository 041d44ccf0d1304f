package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// maxDescriptionRunes is GitHub's limit on commit status descriptions.
const maxDescriptionRunes = 140

// StatusState maps a run status onto a commit status state. Anything outside
// the known set is reported as "error".
func StatusState(status model.RunStatus) string {
	if s, ok := model.ParseRunStatus(string(status)); ok {
		return string(s)
	}
	return string(model.RunStatusError)
}

// StatusDescription returns the run summary, or a generic line when the
// summary is empty, cut to 140 runes.
func StatusDescription(result model.RunResult) string {
	desc := result.Summary
	if strings.TrimSpace(desc) == "" {
		desc = fmt.Sprintf("CI finished with status: %s", result.Status)
	}
	return truncateRunes(desc, maxDescriptionRunes)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// ParseRepoURL extracts owner and repository name from the forms GitHub hands
// out: https://host/owner/repo(.git), git@host:owner/repo(.git) and
// ssh://git@host/owner/repo(.git).
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	var path string

	switch {
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "ssh://"):
		u, perr := url.Parse(s)
		if perr != nil || u.Host == "" {
			return "", "", fmt.Errorf("%w: %q", model.ErrUnsupportedRepoURL, raw)
		}
		path = u.Path
	case strings.Contains(s, "@") && strings.Contains(s, ":") && !strings.Contains(s, "://"):
		_, rest, _ := strings.Cut(s, "@")
		_, path, _ = strings.Cut(rest, ":")
	default:
		return "", "", fmt.Errorf("%w: %q", model.ErrUnsupportedRepoURL, raw)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", model.ErrUnsupportedRepoURL, raw)
	}
	return parts[0], parts[1], nil
}
