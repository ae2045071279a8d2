package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/medisynth-ai/medisynth/internal/transcript"
	"github.com/medisynth-ai/medisynth/pkg/provider/ner"
)

// defaultModelTimeout bounds one NER provider call. The pipeline is a
// single-pass request-scoped transformation; a slow collaborator is treated
// the same as an unavailable one.
const defaultModelTimeout = 10 * time.Second

// labelCategories maps normalised provider labels to clinical categories.
// Labels follow the biomedical NER label families; unknown labels fall
// through to a substring heuristic in mapLabel.
var labelCategories = map[string]Category{
	"SIGN_SYMPTOM":          CategorySymptom,
	"SYMPTOM":               CategorySymptom,
	"MEDICATION":            CategoryMedication,
	"DRUG":                  CategoryMedication,
	"VITAL_SIGN":            CategoryVitalSign,
	"DISEASE_DISORDER":      CategoryCondition,
	"DISEASE":               CategoryCondition,
	"CONDITION":             CategoryCondition,
	"DIAGNOSIS":             CategoryCondition,
	"DIAGNOSTIC_PROCEDURE":  CategoryProcedure,
	"THERAPEUTIC_PROCEDURE": CategoryProcedure,
	"PROCEDURE":             CategoryProcedure,
}

// mapLabel resolves a provider label to a category. Returns false for labels
// with no clinical mapping (e.g., anatomy or temporal labels), which are
// skipped rather than guessed.
func mapLabel(label string) (Category, bool) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(label), " ", "_"))
	if c, ok := labelCategories[norm]; ok {
		return c, true
	}

	switch {
	case strings.Contains(norm, "SYMPTOM"):
		return CategorySymptom, true
	case strings.Contains(norm, "MEDICATION"), strings.Contains(norm, "DRUG"):
		return CategoryMedication, true
	case strings.Contains(norm, "VITAL"):
		return CategoryVitalSign, true
	case strings.Contains(norm, "DISEASE"), strings.Contains(norm, "DISORDER"):
		return CategoryCondition, true
	case strings.Contains(norm, "PROCEDURE"):
		return CategoryProcedure, true
	}
	return "", false
}

// ModelOption is a functional option for configuring a [ModelExtractor].
type ModelOption func(*ModelExtractor)

// WithModelTimeout bounds a single provider call. Default: 10s.
func WithModelTimeout(d time.Duration) ModelOption {
	return func(m *ModelExtractor) {
		m.timeout = d
	}
}

// ModelExtractor is the model-backed implementation of [Extractor]. It joins
// the utterances into one document, sends it to the [ner.Provider], and maps
// the returned spans back onto utterance indices and clinical categories.
// It is safe for concurrent use.
type ModelExtractor struct {
	provider ner.Provider
	timeout  time.Duration
}

// Compile-time interface assertion.
var _ Extractor = (*ModelExtractor)(nil)

// NewModel constructs a [ModelExtractor] backed by provider.
func NewModel(provider ner.Provider, opts ...ModelOption) *ModelExtractor {
	m := &ModelExtractor{
		provider: provider,
		timeout:  defaultModelTimeout,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Extract implements [Extractor]. The provider sees the utterances joined by
// newlines, so its span offsets can be mapped back to the owning utterance.
// Spans with unmapped labels are dropped; spans without usable offsets are
// located by text search across the utterances. Providers report spans in
// whatever order the model emits mentions, so the mapped entities are sorted
// back into utterance-then-position order before deduplication.
func (m *ModelExtractor) Extract(ctx context.Context, utterances []transcript.Utterance) ([]Entity, error) {
	if len(utterances) == 0 {
		return []Entity{}, nil
	}

	doc, lineStarts := joinUtterances(utterances)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	spans, err := m.provider.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract: model: %w", err)
	}

	type candidate struct {
		entity Entity
		pos    int
	}
	candidates := []candidate{}
	for _, s := range spans {
		category, ok := mapLabel(s.Label)
		if !ok {
			continue
		}

		var idx, pos int
		if s.Start == 0 && s.End == 0 {
			idx, pos = findUtterance(utterances, s.Text)
		} else {
			idx = utteranceForOffset(lineStarts, s.Start)
			pos = s.Start - lineStarts[idx]
		}
		if idx < 0 {
			continue
		}

		candidates = append(candidates, candidate{
			entity: Entity{
				Text:       s.Text,
				Category:   category,
				Utterance:  idx,
				Confidence: s.Confidence,
			},
			pos: pos,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].entity.Utterance != candidates[j].entity.Utterance {
			return candidates[i].entity.Utterance < candidates[j].entity.Utterance
		}
		return candidates[i].pos < candidates[j].pos
	})

	entities := make([]Entity, 0, len(candidates))
	for _, c := range candidates {
		entities = append(entities, c.entity)
	}
	return dedupe(entities), nil
}

// joinUtterances concatenates utterance texts with newline separators and
// returns the byte offset at which each utterance starts.
func joinUtterances(utterances []transcript.Utterance) (string, []int) {
	var sb strings.Builder
	starts := make([]int, len(utterances))
	for i, u := range utterances {
		if i > 0 {
			sb.WriteByte('\n')
		}
		starts[i] = sb.Len()
		sb.WriteString(u.Text)
	}
	return sb.String(), starts
}

// utteranceForOffset returns the index of the utterance whose line of the
// joined document contains the byte offset start.
func utteranceForOffset(lineStarts []int, start int) int {
	idx := 0
	for i, s := range lineStarts {
		if start >= s {
			idx = i
		}
	}
	return idx
}

// findUtterance locates text by case-insensitive substring search and returns
// the first containing utterance's index and the match position within it, or
// (-1, 0) when no utterance contains the text.
func findUtterance(utterances []transcript.Utterance, text string) (int, int) {
	needle := strings.ToLower(text)
	for _, u := range utterances {
		if pos := strings.Index(strings.ToLower(u.Text), needle); pos >= 0 {
			return u.Index, pos
		}
	}
	return -1, 0
}
