package model

// PushEvent is the validated subset of a source-control push webhook.
// It is built once at the HTTP boundary and discarded after a Task is derived.
type PushEvent struct {
	Ref           string // Full reference, e.g. "refs/heads/main".
	Before        string // Commit the ref pointed to before the push.
	After         string // Commit the ref points to now.
	RepositoryURL string // repository.html_url
	CloneURL      string // repository.clone_url, empty when absent.
	Pusher        string // pusher.name
	Deleted       bool   // True when the push deleted the ref.
}
