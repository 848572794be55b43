package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// MatrixFile is the top-level YAML structure for a training matrix import.
type MatrixFile struct {
	Trainings []TrainingImport `yaml:"trainings"`
	Matrix    []EntryImport    `yaml:"matrix"`
	Workers   []WorkerImport   `yaml:"workers,omitempty"`
}

// TrainingImport defines a catalog training in the import file.
type TrainingImport struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	ValidityPeriod string `yaml:"validity_period"`
	PassingScore   *int   `yaml:"passing_score,omitempty"`
}

// EntryImport defines one role/department requirement set. Ref is optional
// and names the entry independently of its position in the file.
type EntryImport struct {
	Ref            string              `yaml:"ref,omitempty"`
	Role           string              `yaml:"role"`
	Department     string              `yaml:"department"`
	Frequency      string              `yaml:"frequency,omitempty"`
	ValidityPeriod string              `yaml:"validity_period,omitempty"`
	Trainings      []RequirementImport `yaml:"trainings"`
}

type RequirementImport struct {
	ID         string `yaml:"id"`
	RequiredBy string `yaml:"required_by,omitempty"`
}

// WorkerImport lists a person to include in department compliance reports.
type WorkerImport struct {
	UserID     string `yaml:"user_id"`
	Name       string `yaml:"name,omitempty"`
	Role       string `yaml:"role"`
	Department string `yaml:"department"`
}

// LoadMatrixFile reads and parses a training matrix YAML file.
func LoadMatrixFile(path string) (*MatrixFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMatrix(data)
}

// ParseMatrix decodes a training matrix document. Unknown keys are rejected.
func ParseMatrix(data []byte) (*MatrixFile, error) {
	var f MatrixFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing matrix file: document is empty")
		}
		return nil, fmt.Errorf("parsing matrix file: %w", err)
	}
	return &f, nil
}
