package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
	"github.com/synaptica-ai/biomarkers/pkg/observability/metrics"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
)

type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type SnapshotSaver interface {
	Save(ctx context.Context, vm *models.ViewModel) error
}

type Invalidator interface {
	Invalidate()
}

// Refresher recomputes the dashboard when a lab report event arrives. An event
// carrying a "dataset" object replaces the active dataset first.
type Refresher struct {
	pipeline   *Pipeline
	prefs      preferences.Store
	source     Invalidator
	snapshots  SnapshotSaver
	dashboards Publisher
	critical   Publisher
	name       string
	now        func() time.Time
}

// NewRefresher wires the worker. source, snapshots and both publishers may be
// nil.
func NewRefresher(p *Pipeline, prefs preferences.Store, source Invalidator, snapshots SnapshotSaver, dashboards, critical Publisher, name string) *Refresher {
	return &Refresher{
		pipeline:   p,
		prefs:      prefs,
		source:     source,
		snapshots:  snapshots,
		dashboards: dashboards,
		critical:   critical,
		name:       name,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes one event. Malformed payloads are logged and swallowed so
// they are not redelivered; infrastructure failures are returned for retry.
func (r *Refresher) Handle(ctx context.Context, event models.Event) error {
	metrics.ObserveRefreshEvent()
	log := logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	if raw, ok := event.Data["dataset"]; ok {
		payload, err := json.Marshal(raw)
		if err != nil {
			log.WithError(err).Warn("dropping event with unencodable dataset")
			return nil
		}
		if _, err := dataset.Upload(ctx, r.prefs, payload); err != nil {
			if dataset.IsMalformed(err) {
				log.WithError(err).Warn("dropping event with malformed dataset")
				return nil
			}
			return err
		}
	}
	if r.source != nil {
		r.source.Invalidate()
	}

	vm, err := r.pipeline.Run(ctx)
	if err != nil {
		if dataset.IsMalformed(err) {
			log.WithError(err).Warn("dataset cannot be processed, skipping refresh")
			return nil
		}
		return err
	}

	if r.snapshots != nil {
		if err := r.snapshots.Save(ctx, vm); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		metrics.ObserveSnapshot()
	}

	at := r.now()
	if r.dashboards != nil {
		if err := r.dashboards.Publish(ctx, DashboardEvent(vm, r.name, at)); err != nil {
			return err
		}
	}
	if r.critical != nil {
		for _, e := range CriticalAlertEvents(vm, r.name, at) {
			if err := r.critical.Publish(ctx, e); err != nil {
				return err
			}
		}
	}

	log.WithField("run_id", vm.RunID).Info("dashboard refreshed")
	return nil
}
