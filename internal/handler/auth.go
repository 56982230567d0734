package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"sprintium/internal/auth"
	"sprintium/internal/events"
	"sprintium/internal/jwtauth"
	"sprintium/internal/metrics"
	"sprintium/internal/notify"
	"sprintium/internal/user"
)

const forgotPasswordMessage = "If the email is registered, a password reset link has been sent"

// AuthHandler handles registration, login, logout and the password reset flow.
type AuthHandler struct {
	users            *user.Manager
	tokens           *jwtauth.Service
	resolver         *auth.Resolver
	mailer           notify.PasswordResetSender
	events           events.Publisher
	exposeResetToken bool
}

// NewAuthHandler creates a new auth handler. When exposeResetToken is set,
// forgot-password responses include the reset token itself.
func NewAuthHandler(
	users *user.Manager,
	tokens *jwtauth.Service,
	resolver *auth.Resolver,
	mailer notify.PasswordResetSender,
	pub events.Publisher,
	exposeResetToken bool,
) *AuthHandler {
	return &AuthHandler{
		users:            users,
		tokens:           tokens,
		resolver:         resolver,
		mailer:           mailer,
		events:           pub,
		exposeResetToken: exposeResetToken,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	publish(r.Context(), h.events, events.New(events.UserRegistered, u.Email, u.Email, map[string]string{
		"id":       u.ID.String(),
		"username": u.Username,
	}))

	writeJSON(w, http.StatusCreated, userResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			metrics.AuthFailuresTotal.WithLabelValues("bad_credentials").Inc()
		}
		writeError(w, r, err)
		return
	}

	token, _, err := h.tokens.IssueSessionToken(u.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout handles POST /auth/logout. The presented token stops being accepted.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	if err := h.resolver.Revoke(r.Context(), identity); err != nil {
		writeError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Logged out successfully")
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type forgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

// ForgotPassword handles POST /auth/forgot-password.
// The response is the same whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	resp := forgotPasswordResponse{Message: forgotPasswordMessage}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeJSON(w, http.StatusOK, resp)
			return
		}
		writeError(w, r, err)
		return
	}

	token, _, err := h.tokens.IssueResetToken(u.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.mailer != nil {
		if err := h.mailer.SendPasswordReset(r.Context(), u.Email, token); err != nil {
			slog.ErrorContext(r.Context(), "failed to send password reset mail",
				slog.String("to", u.Email),
				slog.String("error", err.Error()),
			)
		}
	}

	publish(r.Context(), h.events, events.New(events.PasswordResetRequested, u.Email, u.Email, nil))

	if h.exposeResetToken {
		resp.ResetToken = token
	}
	writeJSON(w, http.StatusOK, resp)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword handles POST /auth/reset-password. A reset token works once.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	identity, err := h.resolver.ResolveReset(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.users.ResetPassword(r.Context(), identity.Email, req.NewPassword); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, r, jwtauth.ErrInvalidOrExpiredToken)
			return
		}
		writeError(w, r, err)
		return
	}

	if err := h.resolver.Revoke(r.Context(), identity); err != nil {
		slog.WarnContext(r.Context(), "failed to revoke used reset token", slog.String("error", err.Error()))
	}

	publish(r.Context(), h.events, events.New(events.PasswordReset, identity.Email, identity.Email, nil))

	writeMessage(w, http.StatusOK, "Password reset successful")
}
