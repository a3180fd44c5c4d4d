package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/patient"
)

// Source delivers the input document for a pipeline run.
type Source interface {
	Load(ctx context.Context) (*models.Document, error)
}

// Decode parses and validates a dataset document.
func Decode(data []byte) (*models.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, Malformed(errors.New("empty document"))
	}
	var doc *models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, Malformed(fmt.Errorf("decoding document: %w", err))
	}
	if doc == nil {
		return nil, Malformed(errors.New("null document"))
	}
	if len(patient.Profiles(doc)) == 0 {
		return nil, Malformed(patient.ErrNoPatient)
	}
	return doc, nil
}

type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(_ context.Context) (*models.Document, error) {
	content, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", s.path, err)
	}
	return Decode(content)
}

// StaticSource serves an already decoded document.
type StaticSource struct {
	doc *models.Document
}

func NewStaticSource(doc *models.Document) *StaticSource {
	return &StaticSource{doc: doc}
}

func (s *StaticSource) Load(_ context.Context) (*models.Document, error) {
	if s.doc == nil || len(patient.Profiles(s.doc)) == 0 {
		return nil, Malformed(patient.ErrNoPatient)
	}
	return s.doc, nil
}
