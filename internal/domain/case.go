package domain

import (
	"encoding/json"
	"fmt"
)

// Default clinical values of a fresh form
const (
	DefaultDiagnosis = "Pulpite irréversible"
	DefaultPrognosis = "Bon"
	DefaultPlan      = "Traitement endodontique"
)

// CaseRecord is the structured form data describing one referral letter.
// It is a value type: setters return a modified copy.
type CaseRecord struct {
	ReferringDoctor string        `json:"refDr" yaml:"refDr"`
	PatientName     string        `json:"patientName" yaml:"patientName"`
	PatientDOB      string        `json:"patientDOB" yaml:"patientDOB"`
	Tooth           string        `json:"tooth" yaml:"tooth"`
	Diagnosis       string        `json:"diagnosis" yaml:"diagnosis"`
	Prognosis       string        `json:"prognosis" yaml:"prognosis"`
	Plan            string        `json:"plan" yaml:"plan"`
	ProcedureType   ProcedureKind `json:"procedureType" yaml:"procedureType"`
	ClinicalNotes   string        `json:"notes" yaml:"notes"`
}

// NewCaseRecord returns the record a new editing session starts from
func NewCaseRecord() CaseRecord {
	return CaseRecord{
		Diagnosis:     DefaultDiagnosis,
		Prognosis:     DefaultPrognosis,
		Plan:          DefaultPlan,
		ProcedureType: DefaultProcedureKind,
	}
}

// caseRecordJSON accepts the long field names next to the form's short ones
type caseRecordJSON struct {
	RefDr           *string        `json:"refDr"`
	ReferringDoctor *string        `json:"referringDoctor"`
	PatientName     string         `json:"patientName"`
	PatientDOB      string         `json:"patientDOB"`
	Tooth           string         `json:"tooth"`
	Diagnosis       *string        `json:"diagnosis"`
	Prognosis       *string        `json:"prognosis"`
	Plan            *string        `json:"plan"`
	ProcedureType   *ProcedureKind `json:"procedureType"`
	Notes           *string        `json:"notes"`
	ClinicalNotes   *string        `json:"clinicalNotes"`
}

// UnmarshalJSON decodes a record. Fields left out keep the defaults of a fresh form.
func (c *CaseRecord) UnmarshalJSON(data []byte) error {
	var raw caseRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rec := NewCaseRecord()
	rec.PatientName = raw.PatientName
	rec.PatientDOB = raw.PatientDOB
	rec.Tooth = raw.Tooth
	if raw.Diagnosis != nil {
		rec.Diagnosis = *raw.Diagnosis
	}
	if raw.Prognosis != nil {
		rec.Prognosis = *raw.Prognosis
	}
	if raw.Plan != nil {
		rec.Plan = *raw.Plan
	}
	switch {
	case raw.RefDr != nil:
		rec.ReferringDoctor = *raw.RefDr
	case raw.ReferringDoctor != nil:
		rec.ReferringDoctor = *raw.ReferringDoctor
	}
	switch {
	case raw.Notes != nil:
		rec.ClinicalNotes = *raw.Notes
	case raw.ClinicalNotes != nil:
		rec.ClinicalNotes = *raw.ClinicalNotes
	}
	if raw.ProcedureType != nil {
		rec.ProcedureType = *raw.ProcedureType
	}

	*c = rec
	return nil
}

// WithPatientName returns a copy with the patient name replaced
func (c CaseRecord) WithPatientName(name string) CaseRecord {
	c.PatientName = name
	return c
}

// WithTooth returns a copy with the tooth identifier replaced
func (c CaseRecord) WithTooth(tooth string) CaseRecord {
	c.Tooth = tooth
	return c
}

// WithProcedure returns a copy with the procedure kind replaced
func (c CaseRecord) WithProcedure(kind ProcedureKind) CaseRecord {
	c.ProcedureType = kind
	return c
}

// WithClinicalNotes returns a copy with the notes replaced
func (c CaseRecord) WithClinicalNotes(notes string) CaseRecord {
	c.ClinicalNotes = notes
	return c
}

// Set applies one form edit addressed by its field name and returns the new record.
// Unknown field names and unregistered procedure kinds are rejected.
func (c CaseRecord) Set(field, value string) (CaseRecord, error) {
	switch field {
	case "refDr", "referringDoctor":
		c.ReferringDoctor = value
	case "patientName":
		c.PatientName = value
	case "patientDOB":
		c.PatientDOB = value
	case "tooth":
		c.Tooth = value
	case "diagnosis":
		c.Diagnosis = value
	case "prognosis":
		c.Prognosis = value
	case "plan":
		c.Plan = value
	case "procedureType":
		kind, err := ParseProcedureKind(value)
		if err != nil {
			return c, err
		}
		c.ProcedureType = kind
	case "notes", "clinicalNotes":
		c.ClinicalNotes = value
	default:
		return c, NewValidationError(field, fmt.Sprintf("unknown case field %q", field), value)
	}
	return c, nil
}

// Attachments are the optional before/after images shown under the letter
type Attachments struct {
	PreOp  string `json:"preOp,omitempty" yaml:"preOp,omitempty"`
	PostOp string `json:"postOp,omitempty" yaml:"postOp,omitempty"`
}

// Empty reports whether neither image slot is filled
func (a Attachments) Empty() bool {
	return a.PreOp == "" && a.PostOp == ""
}

// RewriteRequest is the body of a rewrite call
type RewriteRequest struct {
	Notes       string `json:"notes"`
	PatientName string `json:"patientName"`
}

// RewriteResponse carries either the generated output or an error message
type RewriteResponse struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}
