// Package casefile reads case records from YAML or JSON files for the CLI.
//
// A file holds either the case fields at the top level or a "case" mapping
// next to an optional "attachments" mapping:
//
//	case:
//	  patientName: Jean Dupont
//	  tooth: 36
//	  procedureType: surgery
//	attachments:
//	  preOp: data:image/png;base64,...
package casefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/endo-report-server/internal/domain"
)

// File is a decoded case file
type File struct {
	Case        domain.CaseRecord
	Attachments domain.Attachments
}

type record struct {
	RefDr           *string               `yaml:"refDr"`
	ReferringDoctor *string               `yaml:"referringDoctor"`
	PatientName     string                `yaml:"patientName"`
	PatientDOB      string                `yaml:"patientDOB"`
	Tooth           string                `yaml:"tooth"`
	Diagnosis       *string               `yaml:"diagnosis"`
	Prognosis       *string               `yaml:"prognosis"`
	Plan            *string               `yaml:"plan"`
	ProcedureType   *domain.ProcedureKind `yaml:"procedureType"`
	Notes           *string               `yaml:"notes"`
	ClinicalNotes   *string               `yaml:"clinicalNotes"`
}

type document struct {
	record      `yaml:",inline"`
	Case        *record            `yaml:"case"`
	Attachments domain.Attachments `yaml:"attachments"`
}

// Load reads and parses the case file at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a case file. Unknown keys are rejected so typos surface early.
// Clinical fields left out keep the defaults of a fresh form.
func Parse(data []byte) (*File, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse case file: %w", err)
	}

	src := doc.record
	if doc.Case != nil {
		src = *doc.Case
	}

	return &File{
		Case:        src.toCaseRecord(),
		Attachments: doc.Attachments,
	}, nil
}

func (r record) toCaseRecord() domain.CaseRecord {
	rec := domain.NewCaseRecord()
	rec.PatientName = r.PatientName
	rec.PatientDOB = r.PatientDOB
	rec.Tooth = r.Tooth

	rec.ReferringDoctor = firstOf(r.RefDr, r.ReferringDoctor, "")
	rec.ClinicalNotes = firstOf(r.Notes, r.ClinicalNotes, "")
	rec.Diagnosis = firstOf(r.Diagnosis, nil, rec.Diagnosis)
	rec.Prognosis = firstOf(r.Prognosis, nil, rec.Prognosis)
	rec.Plan = firstOf(r.Plan, nil, rec.Plan)
	if r.ProcedureType != nil {
		rec.ProcedureType = *r.ProcedureType
	}
	return rec
}

func firstOf(a, b *string, fallback string) string {
	switch {
	case a != nil:
		return *a
	case b != nil:
		return *b
	}
	return fallback
}
