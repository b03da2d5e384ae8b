package letter

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/endo-report-server/internal/domain"
)

const (
	blankSlot   = "________"
	dateLayout  = "2006-01-02" // fr-CA short date
	closingNote = "Le patient a été avisé de retourner à votre cabinet pour la restauration finale."
	contactNote = "Si vous avez des questions concernant ce cas, n'hésitez pas à me contacter."
	signOff     = "Cordialement,"
)

// Default letterhead values, used when the configuration leaves them empty
const (
	DefaultClinicName        = "CLINIQUE ENDODONTIQUE"
	DefaultPractitionerName  = "Dr. [VOTRE NOM]"
	DefaultPractitionerTitle = "Endodontiste Certifié"
)

// Document is a fully assembled referral letter
type Document struct {
	ClinicName        string
	PractitionerName  string
	PractitionerTitle string
	Date              string
	Dossier           string
	Recipient         string
	Subject           string
	Body              string
	Notes             string
	PreOp             template.URL
	PostOp            template.URL
}

// Composer assembles letters around the rendered procedure body
type Composer struct {
	letterhead domain.LetterheadConfig
	now        func() time.Time
}

// ComposerOption is a functional option for Composer
type ComposerOption func(*Composer)

// WithClock overrides the clock used for the letter date
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) {
		c.now = now
	}
}

// NewComposer creates a composer for the given practice identity
func NewComposer(letterhead domain.LetterheadConfig, opts ...ComposerOption) *Composer {
	if letterhead.ClinicName == "" {
		letterhead.ClinicName = DefaultClinicName
	}
	if letterhead.PractitionerName == "" {
		letterhead.PractitionerName = DefaultPractitionerName
	}
	if letterhead.PractitionerTitle == "" {
		letterhead.PractitionerTitle = DefaultPractitionerTitle
	}

	c := &Composer{
		letterhead: letterhead,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders the body of rec and wraps it into a full letter
func (c *Composer) Compose(rec domain.CaseRecord, att domain.Attachments) (*Document, error) {
	body, err := Render(rec)
	if err != nil {
		return nil, err
	}

	preOp, err := imageURL("preOp", att.PreOp)
	if err != nil {
		return nil, err
	}
	postOp, err := imageURL("postOp", att.PostOp)
	if err != nil {
		return nil, err
	}

	subject := rec.PatientName
	if rec.PatientDOB != "" {
		subject = fmt.Sprintf("%s (Né(e) le : %s)", rec.PatientName, rec.PatientDOB)
	}

	return &Document{
		ClinicName:        c.letterhead.ClinicName,
		PractitionerName:  c.letterhead.PractitionerName,
		PractitionerTitle: c.letterhead.PractitionerTitle,
		Date:              c.now().Format(dateLayout),
		Dossier:           orBlank(rec.PatientName),
		Recipient:         orBlank(rec.ReferringDoctor),
		Subject:           subject,
		Body:              body,
		Notes:             rec.ClinicalNotes,
		PreOp:             preOp,
		PostOp:            postOp,
	}, nil
}

// Text returns the letter as plain text. Nothing is escaped.
func (d *Document) Text() string {
	var b strings.Builder

	b.WriteString(d.ClinicName + "\n")
	b.WriteString(d.PractitionerName + "\n")
	b.WriteString(d.PractitionerTitle + "\n\n")
	b.WriteString(fmt.Sprintf("Date : %s\n", d.Date))
	b.WriteString(fmt.Sprintf("Dossier : %s\n", d.Dossier))
	b.WriteString(strings.Repeat("-", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("À l'attention du Dr %s\n\n", d.Recipient))
	b.WriteString(fmt.Sprintf("Concerne : %s\n\n", d.Subject))
	b.WriteString(d.Body + "\n")
	if d.Notes != "" {
		b.WriteString("\nNotes Cliniques :\n")
		b.WriteString(d.Notes + "\n")
	}
	b.WriteString("\n" + closingNote + "\n\n")
	b.WriteString(contactNote + "\n\n")
	b.WriteString(signOff + "\n\n")
	b.WriteString(d.PractitionerName + "\n")

	return b.String()
}

// HTML returns the printable letter. All case fields are escaped.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := htmlLetter.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render letter html: %w", err)
	}
	return buf.String(), nil
}

func orBlank(s string) string {
	if s == "" {
		return blankSlot
	}
	return s
}

// imageURL accepts only inline image data, the form's file reader output
func imageURL(field, value string) (template.URL, error) {
	if value == "" {
		return "", nil
	}
	if !strings.HasPrefix(value, "data:image/") {
		return "", domain.NewValidationError(field, "attachment must be a data:image URI", nil)
	}
	return template.URL(value), nil
}

var htmlLetter = template.Must(template.New("letter").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>{{.Dossier}}</title>
<style>
@page { margin: 2cm; size: auto; }
body { font-family: 'Segoe UI', sans-serif; color: #333; }
.header { border-bottom: 2px solid #333; padding-bottom: 20px; margin-bottom: 40px; display: flex; justify-content: space-between; align-items: flex-end; }
.body { line-height: 1.8; font-size: 11pt; white-space: pre-wrap; }
.xrays { display: grid; grid-template-columns: 1fr 1fr; gap: 20px; margin-top: 40px; page-break-inside: avoid; }
.xray { text-align: center; }
.xray img { max-width: 100%; max-height: 250px; object-fit: contain; }
</style>
</head>
<body>
<div class="header">
  <div><strong>{{.ClinicName}}</strong><br>{{.PractitionerName}}<br>{{.PractitionerTitle}}</div>
  <div style="text-align: right"><strong>Date :</strong> {{.Date}}<br><strong>Dossier :</strong> {{.Dossier}}</div>
</div>
<div class="body">
<p><strong>À l'attention du Dr {{.Recipient}}</strong></p>
<p><strong>Concerne :</strong> {{.Subject}}</p>
<div>{{.Body}}{{if .Notes}}
<div><strong>Notes Cliniques :</strong><br>{{.Notes}}</div>{{end}}</div>
<p>Le patient a été avisé de retourner à votre cabinet pour la restauration finale.</p>
</div>
{{- if or .PreOp .PostOp}}
<div class="xrays">
  <div class="xray">{{if .PreOp}}<img src="{{.PreOp}}" alt="Pre-Op">{{else}}<span>Aucune image</span>{{end}}<br><small>Pré-Opératoire</small></div>
  <div class="xray">{{if .PostOp}}<img src="{{.PostOp}}" alt="Post-Op">{{else}}<span>Aucune image</span>{{end}}<br><small>Post-Opératoire</small></div>
</div>
{{- end}}
<div style="margin-top: 60px">
<p>Si vous avez des questions concernant ce cas, n'hésitez pas à me contacter.</p>
<p>Cordialement,</p>
<strong>{{.PractitionerName}}</strong>
</div>
</body>
</html>
`))
