package handler

import (
	"net/http"
	"strings"

	"sprintium/internal/events"
	"sprintium/internal/project"
	"sprintium/internal/user"
)

// ProjectsHandler handles project and membership endpoints.
type ProjectsHandler struct {
	projects *project.Manager
	events   events.Publisher
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projects *project.Manager, pub events.Publisher) *ProjectsHandler {
	return &ProjectsHandler{projects: projects, events: pub}
}

type memberRequest struct {
	Email string       `json:"email"`
	Role  project.Role `json:"role"`
}

type roleRequest struct {
	Role project.Role `json:"role"`
}

func projectEventData(p *project.Project) map[string]string {
	return map[string]string{"id": p.ID.String(), "key": p.Key, "name": p.Name}
}

// Create handles POST /projects
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var in project.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.projects.Create(r.Context(), identity.Email, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.ProjectCreated, p.ID.String(), identity.Email, projectEventData(p)))
	writeJSON(w, http.StatusCreated, p)
}

// List handles GET /projects
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	projects, err := h.projects.ListForMember(r.Context(), identity.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// Get handles GET /projects/{id}
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}

	p, err := h.projects.Get(r.Context(), id, identity.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /projects/{id}
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}

	var in project.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.projects.Update(r.Context(), id, identity.Email, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.ProjectUpdated, p.ID.String(), identity.Email, projectEventData(p)))
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /projects/{id}
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}

	if err := h.projects.Delete(r.Context(), id, identity.Email); err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.ProjectDeleted, id.String(), identity.Email, map[string]string{"id": id.String()}))
	writeMessage(w, http.StatusOK, "Project deleted successfully")
}

// AddMember handles POST /projects/{id}/members
func (h *ProjectsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}

	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.projects.AddMember(r.Context(), id, identity.Email, req.Email, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.MemberAdded, p.ID.String(), identity.Email, map[string]string{
		"project_id": p.ID.String(),
		"email":      storedMemberEmail(req.Email),
		"role":       string(req.Role),
	}))
	writeJSON(w, http.StatusOK, p)
}

// UpdateMemberRole handles PATCH /projects/{id}/members/{email}.
// The new role comes from the role query parameter, or a JSON body when absent.
func (h *ProjectsHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}
	email := r.PathValue("email")

	role := project.Role(r.URL.Query().Get("role"))
	if role == "" {
		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		role = req.Role
	}

	p, err := h.projects.UpdateMemberRole(r.Context(), id, identity.Email, email, role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.MemberRoleUpdated, p.ID.String(), identity.Email, map[string]string{
		"project_id": p.ID.String(),
		"email":      storedMemberEmail(email),
		"role":       string(role),
	}))
	writeJSON(w, http.StatusOK, p)
}

// RemoveMember handles DELETE /projects/{id}/members/{email}
func (h *ProjectsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "id")
	if err != nil {
		writeInvalidID(w, "project")
		return
	}
	email := r.PathValue("email")

	p, err := h.projects.RemoveMember(r.Context(), id, identity.Email, email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.MemberRemoved, p.ID.String(), identity.Email, map[string]string{
		"project_id": p.ID.String(),
		"email":      storedMemberEmail(email),
	}))
	writeJSON(w, http.StatusOK, p)
}

// storedMemberEmail is the form of a member address that the manager stores.
func storedMemberEmail(raw string) string {
	if email, err := user.NormalizeEmail(raw); err == nil {
		return email
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
