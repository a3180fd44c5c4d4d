package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/biomarkers/pkg/common/bootstrap"
	"github.com/synaptica-ai/biomarkers/pkg/common/config"
	"github.com/synaptica-ai/biomarkers/pkg/common/database"
	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/gateway/auth"
	"github.com/synaptica-ai/biomarkers/pkg/gateway/httpclient"
	"github.com/synaptica-ai/biomarkers/pkg/gateway/middleware"
	"github.com/synaptica-ai/biomarkers/pkg/gateway/routes"
)

func main() {
	config.LoadDotEnv()
	logger.Init()
	cfg := config.Load()

	components, err := bootstrap.New(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to assemble dashboard")
	}

	checks := map[string]routes.HealthCheck{}
	var snapshots *routes.SnapshotsHandler
	var snapshotWriter routes.SnapshotWriter
	repo, err := bootstrap.Snapshots(cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("Snapshot storage unavailable, running without persistence")
	} else {
		snapshots = routes.NewSnapshotsHandler(repo)
		snapshotWriter = repo
		checks["postgres"] = database.PingPostgres
		defer database.ClosePostgres()
	}

	var viewCache routes.ViewCache
	if components.ViewCache != nil {
		viewCache = components.ViewCache
		checks["redis"] = database.PingRedis
		defer database.CloseRedis()
	}

	// Initialize OIDC authenticator
	var validator middleware.TokenValidator
	oidcAuth, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, httpclient.New(cfg.HTTPRequestTimeout))
	if err != nil {
		logger.Log.WithError(err).Warn("OIDC authentication not configured, running without auth")
	} else {
		validator = oidcAuth
	}

	// Setup router
	router := mux.NewRouter()

	// Middleware
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	routes.NewMetricsHandler(checks).Register(router)

	// API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Authenticate(validator))
	routes.NewDashboardHandler(components.Pipeline, components.Prefs, viewCache).Register(apiRouter)
	routes.NewPreferencesHandler(components.Prefs, viewCache).Register(apiRouter)
	routes.NewDatasetHandler(components.Pipeline, components.Prefs, viewCache, components.Cached, snapshotWriter).Register(apiRouter)
	if snapshots != nil {
		snapshots.Register(apiRouter)
	}

	// Server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Dashboard service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down dashboard service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Dashboard service stopped")
}
