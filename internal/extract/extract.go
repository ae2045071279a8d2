// Package extract turns segmented transcript utterances into categorised
// clinical entities.
//
// Two extraction strategies implement the [Extractor] interface:
//
//  1. Model-backed ([ModelExtractor]): delegates to an external
//     named-entity-recognition capability (a [ner.Provider]) and maps its
//     labels into the fixed clinical categories. Bounded by a per-call
//     timeout.
//
//  2. Pattern-backed ([PatternExtractor]): a fixed table of per-category
//     regular expressions, scanned case-insensitively, with a Jaro-Winkler
//     fuzzy pass that catches misheard medication and condition names in
//     speech-to-text output. Runs in-process with no network calls.
//
// [Composite] selects between them at runtime: the model is tried first and
// any failure silently falls back to patterns, so extraction as a whole never
// fails; recall may drop, correctness of the contract does not.
package extract

import (
	"context"
	"strings"

	"github.com/medisynth-ai/medisynth/internal/transcript"
)

// Category classifies a clinical entity.
type Category string

const (
	CategorySymptom    Category = "symptom"
	CategoryMedication Category = "medication"
	CategoryVitalSign  Category = "vital_sign"
	CategoryCondition  Category = "condition"
	CategoryProcedure  Category = "procedure"
)

// IsValid reports whether c is a recognised category.
func (c Category) IsValid() bool {
	switch c {
	case CategorySymptom, CategoryMedication, CategoryVitalSign, CategoryCondition, CategoryProcedure:
		return true
	}
	return false
}

// categoryPriority orders categories for tie-breaking when two matches of
// equal length overlap. Lower ranks win.
var categoryPriority = map[Category]int{
	CategoryVitalSign:  0,
	CategoryMedication: 1,
	CategoryCondition:  2,
	CategorySymptom:    3,
	CategoryProcedure:  4,
}

// Entity is a classified span of transcript text. Values are read-only once
// produced by an [Extractor].
type Entity struct {
	// Text is the matched surface text as it appeared in the utterance.
	Text string

	// Category is the clinical classification of the span.
	Category Category

	// Utterance is the index of the [transcript.Utterance] the span was
	// found in. It always refers to an existing utterance of the same
	// transcript.
	Utterance int

	// Confidence is the extraction confidence in [0.0, 1.0]. Pattern matches
	// carry a fixed confidence; fuzzy matches carry their similarity score;
	// model matches carry the provider-reported score.
	Confidence float64
}

// Extractor is the capability interface for entity extraction strategies.
//
// Implementations must be safe for concurrent use and must return entities
// sorted by utterance index, then by first-match position within the
// utterance, with duplicate (text, category, utterance) triples collapsed to
// the highest-confidence occurrence.
type Extractor interface {
	// Extract scans the ordered utterance sequence and returns the
	// categorised entities found in it.
	Extract(ctx context.Context, utterances []transcript.Utterance) ([]Entity, error)
}

// dedupe collapses entities sharing the same lower-cased text, category, and
// utterance index into one, keeping the highest confidence. Input order is
// preserved for the surviving entities.
func dedupe(entities []Entity) []Entity {
	type key struct {
		text      string
		category  Category
		utterance int
	}

	out := entities[:0]
	seen := make(map[key]int, len(entities))
	for _, e := range entities {
		k := key{strings.ToLower(e.Text), e.Category, e.Utterance}
		if i, ok := seen[k]; ok {
			if e.Confidence > out[i].Confidence {
				out[i].Confidence = e.Confidence
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	return out
}
