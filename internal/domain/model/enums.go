package model

import "strings"

// RunStatus is the verdict of a run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailure RunStatus = "failure"
	RunStatusPending RunStatus = "pending" // Reserved; the orchestrator never produces it.
	RunStatusError   RunStatus = "error"
)

// IsTerminal reports whether s ends a run.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailure, RunStatusError:
		return true
	}
	return false
}

// ParseRunStatus maps a stored or remote status string onto a known RunStatus.
// The second return value is false for anything outside the fixed set.
func ParseRunStatus(s string) (RunStatus, bool) {
	switch RunStatus(strings.ToLower(strings.TrimSpace(s))) {
	case RunStatusSuccess:
		return RunStatusSuccess, true
	case RunStatusFailure:
		return RunStatusFailure, true
	case RunStatusPending:
		return RunStatusPending, true
	case RunStatusError:
		return RunStatusError, true
	}
	return "", false
}
