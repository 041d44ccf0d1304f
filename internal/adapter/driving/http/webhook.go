package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/ericfisherdev/basicci/internal/application"
	"github.com/ericfisherdev/basicci/internal/domain/model"
)

// MaxWebhookBodyBytes is GitHub's documented cap on webhook payloads.
const MaxWebhookBodyBytes = 25 << 20

// EventHeader names the GitHub event type of a delivery.
const EventHeader = "X-GitHub-Event"

var commitSHAPattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// pushPayload is the subset of a GitHub push event the service reads. Pointer
// fields distinguish "missing" from "empty".
type pushPayload struct {
	Ref        *string            `json:"ref"`
	Before     *string            `json:"before"`
	After      *string            `json:"after"`
	Deleted    bool               `json:"deleted"`
	Repository *repositoryPayload `json:"repository"`
	Pusher     struct {
		Name string `json:"name"`
	} `json:"pusher"`
}

type repositoryPayload struct {
	HTMLURL  *string `json:"html_url"`
	CloneURL string  `json:"clone_url"`
}

// Webhook authenticates a push delivery, turns it into a task and hands the
// task to the dispatcher. It answers before the run starts.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	header := r.Header.Get(application.SignatureHeader)
	if header == "" {
		writeError(w, http.StatusForbidden, "missing signature")
		return
	}
	if err := h.verifier.Verify(body, header); err != nil {
		h.logger.Warn("rejected webhook delivery", "error", err, "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusForbidden, "invalid signature")
		return
	}

	switch event := r.Header.Get(EventHeader); event {
	case "ping":
		writeJSON(w, http.StatusOK, StatusResponse{Status: "pong"})
		return
	case "push", "":
	default:
		writeJSON(w, http.StatusAccepted, StatusResponse{Status: "ignored", Reason: "unsupported event " + event})
		return
	}

	event, err := decodePushEvent(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if event.Deleted {
		writeJSON(w, http.StatusAccepted, StatusResponse{Status: "ignored", Reason: "branch deleted"})
		return
	}

	task, err := h.tasks.CreateTask(event)
	switch {
	case errors.Is(err, model.ErrRepositoryNotAllowed):
		h.logger.Warn("push for unexpected repository", "repo", event.RepositoryURL)
		writeError(w, http.StatusForbidden, "repository not allowed")
		return
	case err != nil:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.logger.Info("run accepted",
		"run_id", task.RunID,
		"branch", task.Branch,
		"commit", task.CommitSHA,
		"pusher", event.Pusher,
	)
	h.dispatcher.Submit(task)

	writeJSON(w, http.StatusAccepted, StatusResponse{Status: "accepted", RunID: task.RunID})
}

// decodePushEvent parses body and checks the fields a run needs.
func decodePushEvent(body []byte) (model.PushEvent, error) {
	var p pushPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return model.PushEvent{}, fmt.Errorf("%w: %v", model.ErrInvalidPayload, err)
	}

	switch {
	case p.Ref == nil:
		return model.PushEvent{}, fmt.Errorf("%w: missing ref", model.ErrInvalidPayload)
	case p.Before == nil:
		return model.PushEvent{}, fmt.Errorf("%w: missing before", model.ErrInvalidPayload)
	case p.After == nil:
		return model.PushEvent{}, fmt.Errorf("%w: missing after", model.ErrInvalidPayload)
	case !commitSHAPattern.MatchString(*p.After):
		return model.PushEvent{}, fmt.Errorf("%w: after is not a commit sha", model.ErrInvalidPayload)
	case p.Repository == nil || p.Repository.HTMLURL == nil || *p.Repository.HTMLURL == "":
		return model.PushEvent{}, fmt.Errorf("%w: missing repository.html_url", model.ErrInvalidPayload)
	}

	return model.PushEvent{
		Ref:           *p.Ref,
		Before:        *p.Before,
		After:         *p.After,
		RepositoryURL: *p.Repository.HTMLURL,
		CloneURL:      p.Repository.CloneURL,
		Pusher:        p.Pusher.Name,
		Deleted:       p.Deleted,
	}, nil
}
