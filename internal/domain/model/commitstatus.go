package model

// CombinedStatus is the aggregated commit status the source-control host
// reports for a commit.
type CombinedStatus struct {
	State    string         // Overall state: success, failure, pending.
	Statuses []CommitStatus // Individual status entries.
}

// CommitStatus is one status entry on a commit.
type CommitStatus struct {
	Context     string // Reporter identifier, e.g. "basic-ci".
	State       string // success, failure, pending, error.
	Description string
	TargetURL   string
}
