package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"sprintium/internal/auth"
	"sprintium/internal/config"
	"sprintium/internal/database"
	"sprintium/internal/events"
	"sprintium/internal/handler"
	"sprintium/internal/issue"
	"sprintium/internal/jwtauth"
	"sprintium/internal/logging"
	"sprintium/internal/middleware"
	"sprintium/internal/notify"
	"sprintium/internal/project"
	"sprintium/internal/ratelimit"
	"sprintium/internal/user"
)

func main() {
	migrationsFlag := pflag.String("migrations-path", "", "directory holding the SQL migrations (overrides MIGRATIONS_PATH)")
	skipMigrations := pflag.Bool("skip-migrations", false, "start without applying pending migrations")
	migrateDown := pflag.Bool("migrate-down", false, "roll back the last migration and exit")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	// Connect to database
	db, err := database.Open(cfg.Database)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}()
	slog.Info("database connection established")

	// Run migrations
	migrationsPath := getMigrationsPath(*migrationsFlag, cfg.MigrationsPath)
	if *migrateDown {
		status, err := db.MigrateDown(migrationsPath)
		if err != nil {
			fatal("failed to roll back migration", err)
		}
		slog.Info("rolled back last migration", slog.Uint64("version", uint64(status.Version)))
		return
	}
	if !*skipMigrations {
		status, err := db.MigrateUp(migrationsPath)
		if err != nil {
			fatal("failed to run migrations", err)
		}
		if status.Dirty {
			slog.Warn("database is in dirty state, a previous migration failed and manual intervention is required",
				slog.Uint64("version", uint64(status.Version)))
		} else {
			slog.Info("database migrations complete", slog.Uint64("version", uint64(status.Version)))
		}
	}

	tokens, err := jwtauth.NewService(jwtauth.Config{
		SessionKey: cfg.Tokens.SessionSecret,
		ResetKey:   cfg.Tokens.ResetSecret,
	})
	if err != nil {
		fatal("failed to initialize token service", err)
	}

	// Redis backs token revocation and rate limiting. Both are disabled without it.
	var (
		revocations auth.RevocationStore = auth.NopRevocationStore{}
		limiter     middleware.Limiter
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			fatal("invalid redis url", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis not reachable at startup, continuing", slog.String("error", err.Error()))
		}
		cancel()

		revocations = auth.NewRedisRevocationStore(rdb)
		limiter = ratelimit.New(rdb, "", cfg.RateLimit.Rate, cfg.RateLimit.Burst)
		slog.Info("redis enabled for token revocation and rate limiting")
	} else {
		slog.Warn("REDIS_URL not set, logout revocation and rate limiting are disabled")
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		fatal("invalid trusted proxies", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			fatal("failed to connect to kafka", err)
		}
		publisher = kp
		slog.Info("publishing domain events", slog.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("error closing event publisher", slog.String("error", err.Error()))
		}
	}()

	mailer := notify.NewEmailNotifier(cfg.SMTP, cfg.ResetURL, logger)
	if !cfg.SMTP.Enabled() {
		slog.Warn("SMTP not configured, password reset mails will not be sent")
	}

	// Initialize managers
	userManager := user.NewManager(user.NewDatastore(db.DB))
	projectManager := project.NewManager(project.NewDatastore(db.DB))
	issueManager := issue.NewManager(issue.NewDatastore(db.DB), projectManager)

	router := handler.NewRouter(handler.Deps{
		Config:   cfg,
		DB:       db,
		Users:    userManager,
		Projects: projectManager,
		Issues:   issueManager,
		Tokens:   tokens,
		Resolver: auth.NewResolver(tokens, revocations),
		Limiter:  limiter,
		Proxies:  proxies,
		Mailer:   mailer,
		Events:   publisher,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal server errors
	serverErr := make(chan error, 1)

	go func() {
		slog.Info("sprintium server starting",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Environment),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	case sig := <-shutdown:
		slog.Info("received signal, initiating graceful shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		slog.Info("waiting for in-flight requests to complete")
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed, forcing shutdown", slog.String("error", err.Error()))
			if err := server.Close(); err != nil {
				slog.Error("forced shutdown failed", slog.String("error", err.Error()))
			}
		}

		slog.Info("server shutdown complete")
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}

// getMigrationsPath returns the path to the migrations directory.
// An explicit flag or configured path wins; otherwise the migrations folder
// is looked up next to the working directory, then next to the executable.
func getMigrationsPath(candidates ...string) string {
	for _, path := range candidates {
		if path != "" {
			return path
		}
	}

	// Try relative to working directory (for local development)
	if _, err := os.Stat("migrations"); err == nil {
		absPath, _ := filepath.Abs("migrations")
		return absPath
	}

	// Try relative to executable (for Docker)
	execPath, err := os.Executable()
	if err == nil {
		execDir := filepath.Dir(execPath)
		migrationsPath := filepath.Join(execDir, "migrations")
		if _, err := os.Stat(migrationsPath); err == nil {
			return migrationsPath
		}
	}

	// Default fallback
	return "/app/migrations"
}
