package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pesio-ai/be-approval-workflows/internal/client"
	"github.com/pesio-ai/be-approval-workflows/internal/config"
	"github.com/pesio-ai/be-approval-workflows/internal/database"
	"github.com/pesio-ai/be-approval-workflows/internal/handler"
	"github.com/pesio-ai/be-approval-workflows/internal/logger"
	"github.com/pesio-ai/be-approval-workflows/internal/middleware"
	"github.com/pesio-ai/be-approval-workflows/internal/natsclient"
	"github.com/pesio-ai/be-approval-workflows/internal/repository"
	"github.com/pesio-ai/be-approval-workflows/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("environment", cfg.Service.Environment).
		Msg("Starting Approval Workflows Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	var nats *natsclient.Client
	if cfg.NATS.Enabled {
		nats, err = natsclient.Connect(cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("Failed to connect to NATS")
		}
		defer nats.Close()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS disabled, notification events will not be published")
	}

	workflowRepo := repository.NewWorkflowRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)

	identityClient := client.NewIdentityClient(getEnv("IDENTITY_URL", "http://localhost:8081"), log)
	capabilityClient := client.NewCapabilityClient(getEnv("AUTHORIZATION_URL", "http://localhost:8082"), log)
	publisher := client.NewNotificationPublisher(nats, log)

	applicationService := service.NewApplicationService(
		applicationRepo,
		workflowRepo,
		assignmentRepo,
		identityClient,
		identityClient,
		capabilityClient,
		publisher,
		log,
	)
	assignmentService := service.NewAssignmentService(assignmentRepo, workflowRepo, identityClient, log)
	dashboardService := service.NewDashboardService(dashboardRepo, applicationService, capabilityClient, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})
	handler.NewHTTPHandler(applicationService, assignmentService, dashboardService, log).Register(mux)

	var h http.Handler = mux
	h = middleware.Timeout(30 * time.Second)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.RequestID(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
