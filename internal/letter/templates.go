// Package letter renders referral letters from case records.
//
// Render produces the procedure-specific body and is a pure function of the
// record. Composer wraps that body into the full printable letter.
package letter

import (
	"fmt"
	"strings"

	"github.com/endo-report-server/internal/domain"
)

// Procedure describes one registered letter variant
type Procedure struct {
	Kind  domain.ProcedureKind `json:"key"`
	Label string               `json:"label"`
}

var labels = map[domain.ProcedureKind]string{
	domain.ProcedureConsultation: "Consultation",
	domain.ProcedureRootCanal:    "Traitement de Canal (RCT)",
	domain.ProcedureRetreatment:  "Retraitement",
	domain.ProcedureSurgery:      "Microchirurgie (Apico)",
}

// Procedures lists the registry in display order
func Procedures() []Procedure {
	kinds := domain.ProcedureKinds()
	out := make([]Procedure, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Procedure{Kind: k, Label: labels[k]})
	}
	return out
}

// Label returns the display label of a registered kind
func Label(kind domain.ProcedureKind) (string, error) {
	l, ok := labels[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownProcedureKind, kind)
	}
	return l, nil
}

// Render returns the letter body for rec. Field values are interpolated as-is.
func Render(rec domain.CaseRecord) (string, error) {
	switch rec.ProcedureType {
	case domain.ProcedureConsultation:
		return renderConsultation(rec), nil
	case domain.ProcedureRootCanal:
		return renderRootCanal(rec), nil
	case domain.ProcedureRetreatment:
		return renderRetreatment(rec), nil
	case domain.ProcedureSurgery:
		return renderSurgery(rec), nil
	}
	return "", fmt.Errorf("render letter: %w: %q", domain.ErrUnknownProcedureKind, rec.ProcedureType)
}

func greeting(rec domain.CaseRecord) string {
	return "Je vous remercie de m'avoir référé " + rec.PatientName + "."
}

func renderConsultation(rec domain.CaseRecord) string {
	return strings.Join([]string{
		greeting(rec),
		"    ",
		"J'ai eu le plaisir de voir votre patient(e) pour une consultation concernant la dent " + rec.Tooth + ".",
		"L'examen clinique et radiologique confirme un diagnostic de " + strings.ToLower(rec.Diagnosis) + ".",
		"Le pronostic est " + strings.ToLower(rec.Prognosis) + ".",
		"",
		"Je recommande : " + rec.Plan + ".",
	}, "\n")
}

func renderRootCanal(rec domain.CaseRecord) string {
	return strings.Join([]string{
		greeting(rec),
		"",
		"J'ai complété le traitement endodontique de la dent " + rec.Tooth + ".",
		"Le traitement a été effectué sous digue dentaire et microscope opératoire.",
		"Les canaux ont été instrumentés, désinfectés et obturés tridimensionnellement.",
		"La chambre pulpaire a été scellée avec un matériau provisoire.",
	}, "\n")
}

func renderRetreatment(rec domain.CaseRecord) string {
	return strings.Join([]string{
		greeting(rec),
		"",
		"J'ai complété le retraitement endodontique de la dent " + rec.Tooth + ".",
		"L'ancienne obturation a été retirée, la perméabilité rétablie, et une désinfection rigoureuse effectuée avant l'obturation finale.",
	}, "\n")
}

func renderSurgery(rec domain.CaseRecord) string {
	return strings.Join([]string{
		greeting(rec),
		"",
		"Une microchirurgie endodontique a été réalisée sur la dent " + rec.Tooth + ".",
		"L'apex a été réséqué et une obturation rétrograde (Biocéramique) a été placée.",
		"Les sutures devront être retirées dans 3 à 5 jours.",
	}, "\n")
}
