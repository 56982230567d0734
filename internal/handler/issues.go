package handler

import (
	"net/http"

	"sprintium/internal/events"
	"sprintium/internal/issue"
)

// IssuesHandler handles issue endpoints nested under a project.
type IssuesHandler struct {
	issues *issue.Manager
	events events.Publisher
}

// NewIssuesHandler creates a new issues handler.
func NewIssuesHandler(issues *issue.Manager, pub events.Publisher) *IssuesHandler {
	return &IssuesHandler{issues: issues, events: pub}
}

func issueEventData(i *issue.Issue) map[string]string {
	return map[string]string{
		"id":         i.ID.String(),
		"project_id": i.ProjectID.String(),
		"status":     string(i.Status),
	}
}

// Create handles POST /projects/{id}/issues
func (h *IssuesHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	projectID, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}

	var in issue.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.issues.Create(r.Context(), projectID, identity.Email, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.IssueCreated, projectID.String(), identity.Email, issueEventData(created)))
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /projects/{id}/issues
func (h *IssuesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	projectID, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}

	issues, err := h.issues.List(r.Context(), projectID, identity.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

// Update handles PUT /projects/{id}/issues/{issueID}
func (h *IssuesHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	projectID, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}
	issueID, err := parseID(r, "issueID")
	if err != nil {
		writeInvalidID(w, "issue")
		return
	}

	var in issue.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.issues.Update(r.Context(), projectID, issueID, identity.Email, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.IssueUpdated, projectID.String(), identity.Email, issueEventData(updated)))
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /projects/{id}/issues/{issueID}
func (h *IssuesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	projectID, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}
	issueID, err := parseID(r, "issueID")
	if err != nil {
		writeInvalidID(w, "issue")
		return
	}

	if err := h.issues.Delete(r.Context(), projectID, issueID, identity.Email); err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.IssueDeleted, projectID.String(), identity.Email, map[string]string{
		"id":         issueID.String(),
		"project_id": projectID.String(),
	}))
	writeMessage(w, http.StatusOK, "Issue deleted successfully")
}
