package patient

import (
	"errors"
	"strings"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

var ErrNoPatient = errors.New("dataset contains no patient profile")

// Profiles lists the patients a document carries, in document order. The
// patients sequence wins over a single profile, which wins over the legacy
// single-patient fields.
func Profiles(doc *models.Document) []models.PatientProfile {
	if doc == nil {
		return nil
	}
	if len(doc.Patients) > 0 {
		return doc.Patients
	}
	if doc.PatientProfile != nil {
		return []models.PatientProfile{*doc.PatientProfile}
	}
	if legacy, ok := legacyProfile(doc); ok {
		return []models.PatientProfile{legacy}
	}
	return nil
}

// Resolve selects the active patient. With a multi-patient document the
// profile whose id equals selectedID wins, otherwise the first one; a single
// profile is returned regardless of selectedID. A miss is never an error.
func Resolve(doc *models.Document, selectedID string) (*models.PatientProfile, error) {
	profiles := Profiles(doc)
	if len(profiles) == 0 {
		return nil, ErrNoPatient
	}
	if len(doc.Patients) > 0 && selectedID != "" {
		for i := range profiles {
			if profiles[i].PatientID == selectedID {
				return &profiles[i], nil
			}
		}
	}
	return &profiles[0], nil
}

// Options builds the patient selector entries for a document.
func Options(doc *models.Document, active *models.PatientProfile) []models.PatientOption {
	if doc == nil || len(doc.Patients) < 2 {
		return nil
	}
	out := make([]models.PatientOption, 0, len(doc.Patients))
	for _, p := range doc.Patients {
		out = append(out, models.PatientOption{
			PatientID: p.PatientID,
			Name:      p.Name,
			Selected:  active != nil && p.PatientID == active.PatientID,
		})
	}
	return out
}

func legacyProfile(doc *models.Document) (models.PatientProfile, bool) {
	if doc.LegacyPatient == "" && len(doc.LegacyReports) == 0 {
		return models.PatientProfile{}, false
	}
	name := doc.LegacyPatient
	if name == "" {
		name = "Unknown"
	}
	return models.PatientProfile{
		PatientID: strings.ToUpper(strings.ReplaceAll(name, " ", "_")),
		Name:      name,
		Age:       doc.LegacyAge,
		Gender:    doc.LegacyGender,
		Reports:   doc.LegacyReports,
	}, true
}
