package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endo-report-server/internal/domain"
)

func TestRenderAs(t *testing.T) {
	rec := domain.NewCaseRecord().WithPatientName("Jean Dupont").WithTooth("36")
	head := domain.LetterheadConfig{ClinicName: "CLINIQUE TEST"}

	body, err := renderAs(head, rec, domain.Attachments{}, "body")
	require.NoError(t, err)
	assert.NotContains(t, body, "CLINIQUE TEST")
	assert.Contains(t, body, "la dent 36")

	text, err := renderAs(head, rec, domain.Attachments{}, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "CLINIQUE TEST")
	assert.Contains(t, text, body)

	html, err := renderAs(head, rec, domain.Attachments{}, "html")
	require.NoError(t, err)
	assert.Contains(t, html, "<!DOCTYPE html>")

	_, err = renderAs(head, rec, domain.Attachments{}, "pdf")
	assert.Error(t, err)
}

func TestRenderCmd(t *testing.T) {
	dir := t.TempDir()
	casePath := filepath.Join(dir, "case.yaml")
	require.NoError(t, os.WriteFile(casePath, []byte("patientName: Jean Dupont\ntooth: 46\nprocedureType: retreatment\n"), 0644))

	t.Setenv("ENDO_REPORT_AUDIT_DRIVER", "none")

	configFile := ""
	cmd := renderCmd(&configFile)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--case", casePath, "--format", "body"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "J'ai complété le retraitement endodontique de la dent 46.")
}
