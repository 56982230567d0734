package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sprintium/internal/auth"
	"sprintium/internal/config"
	"sprintium/internal/events"
	"sprintium/internal/issue"
	"sprintium/internal/jwtauth"
	"sprintium/internal/middleware"
	"sprintium/internal/notify"
	"sprintium/internal/project"
	"sprintium/internal/user"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Config   *config.Config
	DB       Pinger
	Users    *user.Manager
	Projects *project.Manager
	Issues   *issue.Manager
	Tokens   *jwtauth.Service
	Resolver *auth.Resolver
	Limiter  middleware.Limiter
	Proxies  middleware.TrustedProxies
	Mailer   notify.PasswordResetSender
	Events   events.Publisher
	Logger   *slog.Logger
}

// RegisterRoutes registers all HTTP routes with the provided mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	pub := d.Events
	if pub == nil {
		pub = events.NopPublisher{}
	}

	exposeReset := d.Config != nil && d.Config.ExposeResetToken
	authH := NewAuthHandler(d.Users, d.Tokens, d.Resolver, d.Mailer, pub, exposeReset)
	usersH := NewUsersHandler(d.Users)
	projectsH := NewProjectsHandler(d.Projects, pub)
	issuesH := NewIssuesHandler(d.Issues, pub)

	protect := middleware.RequireAuth(d.Resolver)
	limit := func(h http.Handler) http.Handler { return h }
	if d.Limiter != nil {
		limit = middleware.RateLimit(d.Limiter, d.Proxies)
	}

	// Health, status and metrics (no auth required)
	mux.HandleFunc("GET /{$}", Root)
	mux.HandleFunc("GET /health", HealthCheck)
	mux.HandleFunc("GET /health/ready", readinessHandler(d.DB))
	mux.HandleFunc("GET /api/v1/status", statusHandler(d.Config))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authentication
	mux.HandleFunc("POST /auth/register", authH.Register)
	mux.Handle("POST /auth/login", limit(http.HandlerFunc(authH.Login)))
	mux.Handle("POST /auth/logout", protect(http.HandlerFunc(authH.Logout)))
	mux.Handle("POST /auth/forgot-password", limit(http.HandlerFunc(authH.ForgotPassword)))
	mux.HandleFunc("POST /auth/reset-password", authH.ResetPassword)

	mux.Handle("GET /users/me", protect(http.HandlerFunc(usersH.Me)))

	// Projects. Collection routes accept an optional trailing slash.
	for _, base := range []string{"/projects", "/projects/{$}"} {
		mux.Handle("POST "+base, protect(http.HandlerFunc(projectsH.Create)))
		mux.Handle("GET "+base, protect(http.HandlerFunc(projectsH.List)))
	}
	mux.Handle("GET /projects/{id}", protect(http.HandlerFunc(projectsH.Get)))
	mux.Handle("PUT /projects/{id}", protect(http.HandlerFunc(projectsH.Update)))
	mux.Handle("DELETE /projects/{id}", protect(http.HandlerFunc(projectsH.Delete)))

	// Members
	mux.Handle("POST /projects/{id}/members", protect(http.HandlerFunc(projectsH.AddMember)))
	mux.Handle("PATCH /projects/{id}/members/{email}", protect(http.HandlerFunc(projectsH.UpdateMemberRole)))
	mux.Handle("DELETE /projects/{id}/members/{email}", protect(http.HandlerFunc(projectsH.RemoveMember)))

	// Issues
	for _, base := range []string{"/projects/{id}/issues", "/projects/{id}/issues/{$}"} {
		mux.Handle("POST "+base, protect(http.HandlerFunc(issuesH.Create)))
		mux.Handle("GET "+base, protect(http.HandlerFunc(issuesH.List)))
	}
	mux.Handle("PUT /projects/{id}/issues/{issueID}", protect(http.HandlerFunc(issuesH.Update)))
	mux.Handle("DELETE /projects/{id}/issues/{issueID}", protect(http.HandlerFunc(issuesH.Delete)))
}

// NewRouter builds the full handler chain: CORS, request logging and
// metrics around the route mux.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, d)

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return middleware.CORS(middleware.RequestLogger(logger)(middleware.Metrics(mux)))
}
