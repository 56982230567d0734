package handler

import (
	"net/http"

	"sprintium/internal/config"
)

// Version is the service version reported by /api/v1/status.
var Version = "0.1.0"

// statusHandler reports the service name, version and environment.
func statusHandler(cfg *config.Config) http.HandlerFunc {
	environment := ""
	if cfg != nil {
		environment = cfg.Environment
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":     "sprintium",
			"version":     Version,
			"status":      "operational",
			"environment": environment,
		})
	}
}
