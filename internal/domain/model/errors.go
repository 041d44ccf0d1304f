package model

import (
	"errors"
	"fmt"
)

// ErrorKind names the failure domain an error belongs to. Callers branch on
// the kind instead of on concrete error types.
type ErrorKind string

const (
	KindUnknown ErrorKind = ""
	KindAuth    ErrorKind = "auth"   // Webhook signature problems; the run is never created.
	KindConfig  ErrorKind = "config" // Pipeline definition missing or invalid; run ends in failure.
	KindInfra   ErrorKind = "infra"  // Workspace, fetch or persistence; run ends in error.
	KindStage   ErrorKind = "stage"  // A declared command exited nonzero; run ends in failure.
	KindNotify  ErrorKind = "notify" // Reporting to the source-control host failed.
)

// Sentinel errors, one per concrete failure. Each is matched with errors.Is.
var (
	ErrMalformedSignature   = errors.New("malformed signature")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrSignatureMismatch    = errors.New("signature mismatch")

	ErrPipelineNotFound = errors.New("pipeline definition not found")
	ErrPipelineInvalid  = errors.New("pipeline definition invalid")

	ErrPathOutsideWorkspace = errors.New("path outside workspace")
	ErrFetchFailed          = errors.New("fetch failed")

	ErrUnsupportedRepoURL = errors.New("unsupported repository url")

	ErrInvalidPayload       = errors.New("invalid push payload")
	ErrInvalidRef           = errors.New("unexpected ref format")
	ErrRepositoryNotAllowed = errors.New("repository not allowed")
)

// Error tags an underlying error with its failure domain and the operation
// that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with kind and op. A nil err yields nil.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost tagged error in err's chain, or
// KindUnknown when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
