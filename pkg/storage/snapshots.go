package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotModel is a persisted dashboard view-model.
type SnapshotModel struct {
	ID                 string         `gorm:"primaryKey;column:id"`
	RunID              string         `gorm:"column:run_id;index"`
	PatientID          string         `gorm:"column:patient_id;index"`
	ReportCount        int            `gorm:"column:report_count"`
	CriticalAlertCount int            `gorm:"column:critical_alert_count"`
	LastReport         *time.Time     `gorm:"column:last_report"`
	View               datatypes.JSON `gorm:"column:view"`
	CreatedAt          time.Time      `gorm:"column:created_at"`
}

func (SnapshotModel) TableName() string {
	return "dashboard_snapshots"
}

// SnapshotSummary is the listing shape returned by History.
type SnapshotSummary struct {
	ID                 string     `json:"id"`
	RunID              string     `json:"run_id"`
	PatientID          string     `json:"patient_id"`
	ReportCount        int        `json:"report_count"`
	CriticalAlertCount int        `json:"critical_alert_count"`
	LastReport         *time.Time `json:"last_report,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// NewSnapshotModel encodes vm into a row ready to insert.
func NewSnapshotModel(vm *models.ViewModel) (*SnapshotModel, error) {
	payload, err := json.Marshal(vm)
	if err != nil {
		return nil, fmt.Errorf("encoding view-model: %w", err)
	}
	m := &SnapshotModel{
		ID:                 uuid.New().String(),
		RunID:              vm.RunID,
		PatientID:          vm.Patient.PatientID,
		ReportCount:        vm.Summary.ReportCount,
		CriticalAlertCount: vm.Summary.CriticalAlertCount,
		View:               datatypes.JSON(payload),
	}
	if vm.Summary.LastReport != nil {
		last := vm.Summary.LastReport.Time
		m.LastReport = &last
	}
	return m, nil
}

// ViewModel decodes the stored payload.
func (m *SnapshotModel) ViewModel() (*models.ViewModel, error) {
	var vm models.ViewModel
	if err := json.Unmarshal(m.View, &vm); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", m.ID, err)
	}
	return &vm, nil
}

func (m *SnapshotModel) Summary() SnapshotSummary {
	return SnapshotSummary{
		ID:                 m.ID,
		RunID:              m.RunID,
		PatientID:          m.PatientID,
		ReportCount:        m.ReportCount,
		CriticalAlertCount: m.CriticalAlertCount,
		LastReport:         m.LastReport,
		CreatedAt:          m.CreatedAt,
	}
}

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&SnapshotModel{})
}

// Save persists vm. A run id already stored is not written twice.
func (r *SnapshotRepository) Save(ctx context.Context, vm *models.ViewModel) (*SnapshotModel, error) {
	rec, err := NewSnapshotModel(vm)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Now().UTC()

	var existing SnapshotModel
	err = r.db.WithContext(ctx).Where("run_id = ?", rec.RunID).First(&existing).Error
	switch {
	case err == nil:
		return &existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// Latest returns the newest snapshot for patientID.
func (r *SnapshotRepository) Latest(ctx context.Context, patientID string) (*models.ViewModel, error) {
	var rec SnapshotModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.ViewModel()
}

func (r *SnapshotRepository) History(ctx context.Context, patientID string, limit int) ([]SnapshotSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var recs []SnapshotModel
	tx := r.db.WithContext(ctx).Select("id", "run_id", "patient_id", "report_count", "critical_alert_count", "last_report", "created_at")
	if patientID != "" {
		tx = tx.Where("patient_id = ?", patientID)
	}
	if err := tx.Order("created_at desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]SnapshotSummary, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].Summary())
	}
	return out, nil
}
