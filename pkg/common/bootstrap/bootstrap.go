package bootstrap

import (
	"fmt"

	"github.com/synaptica-ai/biomarkers/pkg/common/config"
	"github.com/synaptica-ai/biomarkers/pkg/common/database"
	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
	"github.com/synaptica-ai/biomarkers/pkg/pipeline"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
	"github.com/synaptica-ai/biomarkers/pkg/storage"
)

const viewCachePrefix = "dashboard:"

// Components is the dashboard runtime assembled from configuration.
type Components struct {
	Catalog   ranges.Catalog
	Prefs     preferences.Store
	Cached    *dataset.CachedSource
	Source    dataset.Source
	Pipeline  *pipeline.Pipeline
	ViewCache *storage.ViewCache
}

func New(cfg *config.Config) (*Components, error) {
	catalog, err := ranges.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	c := &Components{Catalog: catalog}

	switch cfg.PreferencesBackend {
	case "redis":
		client := database.GetRedis(cfg)
		c.Prefs = preferences.NewRedisStore(client, cfg.PreferencesPrefix)
		c.ViewCache = storage.NewViewCache(client, viewCachePrefix, cfg.SnapshotCacheTTL)
	case "memory", "":
		c.Prefs = preferences.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown preferences backend %q", cfg.PreferencesBackend)
	}

	c.Cached = dataset.NewCachedSource(BaseSource(cfg), cfg.DatasetCacheTTL)
	c.Source = dataset.NewOverrideSource(c.Prefs, c.Cached)
	c.Pipeline = pipeline.New(c.Source, c.Prefs, catalog, pipeline.Options{
		TrendAlerts:    cfg.TrendAlerts,
		TrendThreshold: cfg.TrendThreshold,
	})

	logger.Log.WithFields(map[string]interface{}{
		"preferences": cfg.PreferencesBackend,
		"dataset":     datasetLocation(cfg),
		"biomarkers":  len(catalog.Biomarkers),
	}).Info("dashboard components ready")
	return c, nil
}

// BaseSource picks the network source when a URL is configured, otherwise the
// local file.
func BaseSource(cfg *config.Config) dataset.Source {
	if cfg.DatasetURL != "" {
		return dataset.NewHTTPSource(cfg.DatasetURL, cfg.HTTPRequestTimeout, cfg.HTTPRetryAttempts)
	}
	return dataset.NewFileSource(cfg.DatasetPath)
}

func datasetLocation(cfg *config.Config) string {
	if cfg.DatasetURL != "" {
		return cfg.DatasetURL
	}
	return cfg.DatasetPath
}

// Snapshots opens the snapshot repository, migrating its table. Callers treat
// an error as "run without persistence".
func Snapshots(cfg *config.Config) (*storage.SnapshotRepository, error) {
	db, err := database.GetPostgres(cfg)
	if err != nil {
		return nil, err
	}
	repo := storage.NewSnapshotRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrating snapshots: %w", err)
	}
	return repo, nil
}
