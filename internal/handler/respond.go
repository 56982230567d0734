package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"sprintium/internal/auth"
	"sprintium/internal/events"
	"sprintium/internal/issue"
	"sprintium/internal/jwtauth"
	"sprintium/internal/middleware"
	"sprintium/internal/project"
	"sprintium/internal/user"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var errInvalidJSON = errors.New("invalid JSON")

// errorMapping pairs domain errors with their HTTP status and error type.
// The error's own message is sent to the client.
var errorMapping = []struct {
	errs   []error
	status int
	kind   string
}{
	{
		errs: []error{
			errInvalidJSON,
			user.ErrInvalidUsername, user.ErrInvalidEmail, user.ErrInvalidPassword,
			project.ErrInvalidName, project.ErrInvalidKey, project.ErrInvalidRole, project.ErrInvalidEmail,
			issue.ErrInvalidTitle, issue.ErrInvalidStatus,
			jwtauth.ErrInvalidOrExpiredToken,
		},
		status: http.StatusBadRequest,
		kind:   auth.TypeInvalidRequest,
	},
	{
		errs:   []error{user.ErrInvalidCredentials},
		status: http.StatusUnauthorized,
		kind:   auth.TypeAuthentication,
	},
	{
		errs:   []error{project.ErrNotMember, project.ErrForbidden},
		status: http.StatusForbidden,
		kind:   auth.TypePermission,
	},
	{
		errs:   []error{user.ErrNotFound, project.ErrNotFound, project.ErrMemberNotFound, issue.ErrNotFound},
		status: http.StatusNotFound,
		kind:   auth.TypeNotFound,
	},
	{
		errs:   []error{user.ErrEmailTaken, project.ErrKeyTaken, project.ErrAlreadyMember},
		status: http.StatusConflict,
		kind:   auth.TypeConflict,
	},
}

// writeError maps err to a JSON error response. Unknown errors are logged
// and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMapping {
		for _, target := range m.errs {
			if errors.Is(err, target) {
				if m.status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", "Bearer")
				}
				auth.WriteJSONError(w, m.status, target.Error(), m.kind)
				return
			}
		}
	}

	slog.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	auth.WriteInternalError(w)
}

// decodeJSON reads a JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidJSON
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// parseID extracts a UUID path value.
func parseID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return uuid.Nil, errors.New("missing " + name)
	}
	return uuid.Parse(raw)
}

// currentIdentity returns the authenticated caller or writes a 401.
func currentIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		auth.WriteUnauthorized(w)
		return nil, false
	}
	return identity, true
}

// publish sends a domain event. Failures are logged and never fail the request.
func publish(ctx context.Context, pub events.Publisher, e events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "failed to publish event",
			slog.String("type", e.Type),
			slog.String("error", err.Error()),
		)
	}
}

func writeInvalidID(w http.ResponseWriter, what string) {
	auth.WriteJSONError(w, http.StatusBadRequest, "invalid "+what+" id", auth.TypeInvalidRequest)
}
