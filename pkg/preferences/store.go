package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

const (
	KeySelectedPatient = "selected_patient_id"
	KeyCustomRanges    = "custom_refs"
	KeyClinicianNotes  = "clinician_notes"
	KeyTheme           = "theme"
	KeyAnonymize       = "anonymize"
	KeyUploadedDataset = "uploaded_dashboard_data"
)

// Store is a string key-value preference backend. An empty value is
// equivalent to an absent key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		delete(m.values, key)
		return nil
	}
	m.values[key] = value
	return nil
}

// Snapshot holds the preferences a pipeline run reads once at start.
type Snapshot struct {
	SelectedPatientID string
	CustomRanges      map[string]models.Range
	ClinicianNotes    string
	Theme             string
	Anonymize         bool
}

// Read loads a Snapshot. Backend failures and malformed values degrade to
// defaults and are logged.
func Read(ctx context.Context, store Store) Snapshot {
	var snap Snapshot
	if store == nil {
		return snap
	}
	get := func(key string) string {
		v, ok, err := store.Get(ctx, key)
		if err != nil {
			logger.Log.WithError(err).WithField("key", key).Warn("failed to read preference")
			return ""
		}
		if !ok {
			return ""
		}
		return v
	}

	snap.SelectedPatientID = get(KeySelectedPatient)
	snap.ClinicianNotes = get(KeyClinicianNotes)
	snap.Theme = get(KeyTheme)
	if raw := get(KeyAnonymize); raw != "" {
		snap.Anonymize, _ = strconv.ParseBool(raw)
	}
	if raw := get(KeyCustomRanges); raw != "" {
		ranges, err := DecodeRanges(raw)
		if err != nil {
			logger.Log.WithError(err).Warn("ignoring malformed custom reference ranges")
		} else {
			snap.CustomRanges = ranges
		}
	}
	return snap
}

func DecodeRanges(raw string) (map[string]models.Range, error) {
	var ranges map[string]models.Range
	if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
		return nil, fmt.Errorf("decoding custom ranges: %w", err)
	}
	return ranges, nil
}

// SetCustomRange stores an override for one biomarker, keeping the others.
func SetCustomRange(ctx context.Context, store Store, biomarker string, r models.Range) error {
	ranges := map[string]models.Range{}
	raw, ok, err := store.Get(ctx, KeyCustomRanges)
	if err != nil {
		return err
	}
	if ok {
		if existing, err := DecodeRanges(raw); err == nil {
			ranges = existing
		}
	}
	ranges[biomarker] = r
	encoded, err := json.Marshal(ranges)
	if err != nil {
		return err
	}
	return store.Set(ctx, KeyCustomRanges, string(encoded))
}
