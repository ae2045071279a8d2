// Package soap composes structured clinical notes (Subjective, Objective,
// Assessment, Plan) from segmented transcript turns and extracted entities.
//
// Composition is rule-based and deterministic: identical inputs yield
// byte-identical sections. Sections are never empty: when a rule set finds
// nothing to document, the section carries an explicit placeholder so
// downstream rendering stays uniform.
package soap

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medisynth-ai/medisynth/internal/extract"
)

// Placeholder content used when a rule set has nothing to document.
const (
	// PlaceholderChiefComplaint is the chief-complaint value when no
	// patient-attributed symptom or condition was found.
	PlaceholderChiefComplaint = "Not documented"

	// PlaceholderExam is the physical-examination line. It is always a
	// placeholder: no entity category describes exam findings.
	PlaceholderExam = "[To be documented during exam]"

	// PlaceholderSubjective fills the Subjective section for transcripts
	// with no patient-reported content at all.
	PlaceholderSubjective = "Patient history to be documented."

	// PlaceholderAssessment fills the Assessment section when no condition
	// entities were found.
	PlaceholderAssessment = "Clinical assessment pending further evaluation."

	// DefaultFollowUp is the Plan follow-up line when no doctor utterance
	// carries a follow-up cue.
	DefaultFollowUp = "Follow-up as needed."
)

// GeneratedBy names the system in note metadata.
const GeneratedBy = "MediSynth AI Assistant"

// Note is a composed SOAP document. It is immutable once returned by
// [Composer.Compose]; downstream export and editing operate on copies.
type Note struct {
	// ID uniquely identifies this note.
	ID uuid.UUID

	// GeneratedAt is the note creation time.
	GeneratedAt time.Time

	// The four SOAP sections. Never empty: a section without content
	// carries its placeholder text.
	Subjective string
	Objective  string
	Assessment string
	Plan       string

	// Entities are the source entities the note was composed from, in
	// extraction order.
	Entities []extract.Entity
}

// Render formats the note as plain text, one header block followed by the
// four sections.
func (n *Note) Render() string {
	var sb strings.Builder
	rule := strings.Repeat("=", 50)

	sb.WriteString(rule + "\n")
	sb.WriteString("CLINICAL SOAP NOTE\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Note ID: %s\n", n.ID)
	fmt.Fprintf(&sb, "Generated: %s\n", n.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Generated by: %s\n", GeneratedBy)
	sb.WriteString("\n")

	sections := []struct {
		name    string
		content string
	}{
		{"SUBJECTIVE", n.Subjective},
		{"OBJECTIVE", n.Objective},
		{"ASSESSMENT", n.Assessment},
		{"PLAN", n.Plan},
	}
	for _, s := range sections {
		sb.WriteString(s.name + ":\n")
		sb.WriteString(strings.Repeat("-", len(s.name)) + "\n")
		sb.WriteString(s.content + "\n\n")
	}

	return sb.String()
}
