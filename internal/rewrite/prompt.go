// Package rewrite sends rough clinical notes to a text generation provider
// and returns them as formal French report prose.
package rewrite

import "strings"

// promptTemplate is sent as-is apart from the two placeholders. Leading
// indentation and the trailing space after "assistant." are part of it.
const promptTemplate = "" +
	"\n" +
	"      You are an expert Endodontist's assistant. \n" +
	"      Task: Rewrite the following rough notes into a professional, formal French dental report for a referring dentist.\n" +
	"      \n" +
	"      Context:\n" +
	"      - Patient: {{patientName}}\n" +
	"      - Tone: Professional, clinical, precise (use \"nous\", \"il/elle\").\n" +
	"      - Output language: French ONLY.\n" +
	"      - Do not add fake dates or fake names if not provided.\n" +
	"      - Clean up grammar and logic flow.\n" +
	"\n" +
	"      Rough Notes:\n" +
	"      \"{{notes}}\"\n" +
	"    "

// BuildPrompt fills the instruction template in a single pass, so text inside
// notes that looks like a placeholder is never expanded.
func BuildPrompt(notes, patientName string) string {
	return strings.NewReplacer(
		"{{patientName}}", patientName,
		"{{notes}}", notes,
	).Replace(promptTemplate)
}
