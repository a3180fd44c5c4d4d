package dataset

import (
	"context"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
)

// OverrideSource prefers a dataset uploaded through the preference store and
// falls back to the configured source otherwise.
type OverrideSource struct {
	prefs    preferences.Store
	fallback Source
}

func NewOverrideSource(prefs preferences.Store, fallback Source) *OverrideSource {
	return &OverrideSource{prefs: prefs, fallback: fallback}
}

func (s *OverrideSource) Load(ctx context.Context) (*models.Document, error) {
	if s.prefs != nil {
		raw, ok, err := s.prefs.Get(ctx, preferences.KeyUploadedDataset)
		switch {
		case err != nil:
			logger.Log.WithError(err).Warn("failed to read uploaded dataset, using configured source")
		case ok:
			return Decode([]byte(raw))
		}
	}
	return s.fallback.Load(ctx)
}

// Upload validates data and stores it as the active dataset override.
func Upload(ctx context.Context, prefs preferences.Store, data []byte) (*models.Document, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := prefs.Set(ctx, preferences.KeyUploadedDataset, string(data)); err != nil {
		return nil, err
	}
	return doc, nil
}

// ClearUpload removes the override so the configured source is used again.
func ClearUpload(ctx context.Context, prefs preferences.Store) error {
	return prefs.Set(ctx, preferences.KeyUploadedDataset, "")
}
