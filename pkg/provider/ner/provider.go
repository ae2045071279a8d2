// Package ner defines the Provider interface for named-entity-recognition
// backends.
//
// A NER provider takes free clinical text and returns labelled spans. The
// label vocabulary is provider-specific (biomedical model label sets differ
// widely); the extraction layer maps labels into its fixed clinical
// categories and is responsible for falling back to pattern matching when the
// provider is unavailable; NER failure must never surface to note
// generation.
//
// Implementations must be safe for concurrent use.
package ner

import "context"

// Span is one labelled region of the input text.
type Span struct {
	// Text is the surface text of the span.
	Text string

	// Label is the provider-specific entity label (e.g., "Sign_symptom",
	// "Medication").
	Label string

	// Confidence is the provider's score for this span in [0.0, 1.0].
	// Zero when the provider does not report confidence.
	Confidence float64

	// Start and End are byte offsets of the span within the input text.
	// Both are zero when the provider does not report offsets; consumers
	// must then locate the span by its text.
	Start, End int
}

// Provider is the abstraction over any NER backend.
type Provider interface {
	// Extract returns the labelled spans found in text. The spans are
	// ordered by their position in the input when the backend reports
	// offsets, otherwise in backend order.
	//
	// Returns an error when the backend is unreachable, misconfigured, or
	// produces an unusable response. Callers treat any error as
	// "collaborator unavailable".
	Extract(ctx context.Context, text string) ([]Span, error)
}
