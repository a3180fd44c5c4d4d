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
	"github.com/synaptica-ai/biomarkers/pkg/common/kafka"
	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/gateway/routes"
	"github.com/synaptica-ai/biomarkers/pkg/pipeline"
	"github.com/synaptica-ai/biomarkers/pkg/storage"
)

const serviceName = "refresh-worker"

type snapshotSaver struct {
	repo  *storage.SnapshotRepository
	cache *storage.ViewCache
}

func (s snapshotSaver) Save(ctx context.Context, vm *models.ViewModel) error {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			logger.Log.WithError(err).Warn("failed to invalidate view cache")
		}
	}
	if s.repo == nil {
		return nil
	}
	_, err := s.repo.Save(ctx, vm)
	return err
}

func main() {
	config.LoadDotEnv()
	logger.Init()
	cfg := config.Load()

	components, err := bootstrap.New(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to assemble dashboard")
	}

	checks := map[string]routes.HealthCheck{}
	saver := snapshotSaver{cache: components.ViewCache}
	repo, err := bootstrap.Snapshots(cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("Snapshot storage unavailable, refreshing without persistence")
	} else {
		saver.repo = repo
		checks["postgres"] = database.PingPostgres
		defer database.ClosePostgres()
	}
	if components.ViewCache != nil {
		checks["redis"] = database.PingRedis
		defer database.CloseRedis()
	}

	dashboards := kafka.NewProducer(cfg.KafkaBrokers, cfg.DashboardTopic)
	defer dashboards.Close()
	critical := kafka.NewProducer(cfg.KafkaBrokers, cfg.CriticalAlertTopic)
	defer critical.Close()

	refresher := pipeline.NewRefresher(components.Pipeline, components.Prefs, components.Cached, saver, dashboards, critical, serviceName)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.LabReportTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Consume(ctx, refresher.Handle); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Fatal("Consumer error")
		}
	}()

	// HTTP server
	router := mux.NewRouter()
	routes.NewMetricsHandler(checks).Register(router)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  cfg.ServerPort,
			"topic": cfg.LabReportTopic,
		}).Info("Refresh worker started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down refresh worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Refresh worker stopped")
}
