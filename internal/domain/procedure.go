package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProcedureKind identifies one of the closed set of letter variants
type ProcedureKind string

// Registered procedure kinds. The string values are the keys posted by the form.
const (
	ProcedureConsultation ProcedureKind = "consultation"
	ProcedureRootCanal    ProcedureKind = "rct"
	ProcedureRetreatment  ProcedureKind = "retreatment"
	ProcedureSurgery      ProcedureKind = "surgery"
)

// DefaultProcedureKind is selected for a fresh case record
const DefaultProcedureKind = ProcedureRootCanal

var procedureAliases = map[string]ProcedureKind{
	"consultation":         ProcedureConsultation,
	"rct":                  ProcedureRootCanal,
	"root-canal-treatment": ProcedureRootCanal,
	"retreatment":          ProcedureRetreatment,
	"surgery":              ProcedureSurgery,
}

// ProcedureKinds returns every registered kind in display order
func ProcedureKinds() []ProcedureKind {
	return []ProcedureKind{
		ProcedureConsultation,
		ProcedureRootCanal,
		ProcedureRetreatment,
		ProcedureSurgery,
	}
}

// ParseProcedureKind resolves a wire value to a registered kind.
// An empty value resolves to DefaultProcedureKind.
func ParseProcedureKind(s string) (ProcedureKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return DefaultProcedureKind, nil
	}
	kind, ok := procedureAliases[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProcedureKind, s)
	}
	return kind, nil
}

// Valid reports whether k is one of the registered kinds
func (k ProcedureKind) Valid() bool {
	switch k {
	case ProcedureConsultation, ProcedureRootCanal, ProcedureRetreatment, ProcedureSurgery:
		return true
	}
	return false
}

// UnmarshalJSON rejects kinds outside the registry
func (k *ProcedureKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseProcedureKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for case files
func (k *ProcedureKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseProcedureKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
