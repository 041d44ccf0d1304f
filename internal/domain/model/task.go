package model

// Task is one unit of CI work derived from a PushEvent. It is handed around by
// value and never modified after TaskService.CreateTask returns it, so
// concurrent runs cannot observe each other's changes.
type Task struct {
	RunID         string
	RepositoryURL string // Web URL of the repository; used for status reporting.
	CloneURL      string // URL the source fetcher clones from.
	Branch        string
	CommitSHA     string
}
