package handler

import (
	"net/http"
	"time"

	"sprintium/internal/user"
)

// UsersHandler serves the caller's own account.
type UsersHandler struct {
	users *user.Manager
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(users *user.Manager) *UsersHandler {
	return &UsersHandler{users: users}
}

type meResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Me handles GET /users/me
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetByEmail(r.Context(), identity.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	})
}
