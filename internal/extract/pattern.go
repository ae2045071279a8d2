package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/medisynth-ai/medisynth/internal/transcript"
)

const (
	// patternConfidence is the fixed confidence assigned to exact pattern
	// matches. Pattern tables are hand-curated, so the score is static.
	patternConfidence = 0.8

	// defaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a
	// transcript word to be accepted as a misheard vocabulary term.
	defaultFuzzyThreshold = 0.88

	// minFuzzyWordLen guards the fuzzy pass against short-word noise:
	// Jaro-Winkler scores on very short strings are unreliable.
	minFuzzyWordLen = 5
)

// wordRe tokenises utterance text into candidate words for the fuzzy pass.
var wordRe = regexp.MustCompile(`[A-Za-z][A-Za-z'-]*`)

// PatternOption is a functional option for configuring a [PatternExtractor].
type PatternOption func(*PatternExtractor)

// WithLexicon replaces the built-in [DefaultLexicon].
func WithLexicon(lex Lexicon) PatternOption {
	return func(p *PatternExtractor) {
		p.lexicon = lex
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity required for a
// fuzzy vocabulary match. Default: 0.88. A threshold above 1.0 disables the
// fuzzy pass entirely.
func WithFuzzyThreshold(threshold float64) PatternOption {
	return func(p *PatternExtractor) {
		p.fuzzyThreshold = threshold
	}
}

// rule is one compiled pattern bound to its category.
type rule struct {
	category Category
	re       *regexp.Regexp
}

// fuzzyTerm is one canonical vocabulary term bound to its category.
type fuzzyTerm struct {
	category Category
	term     string
}

// candidate is a potential entity span within a single utterance, prior to
// overlap resolution.
type candidate struct {
	start, end int
	category   Category
	confidence float64
	fuzzy      bool
}

// PatternExtractor is the in-process fallback implementation of [Extractor].
// It never fails and needs no network access; it is read-only after
// construction and safe for concurrent use.
type PatternExtractor struct {
	lexicon        Lexicon
	fuzzyThreshold float64

	rules      []rule
	fuzzyTerms []fuzzyTerm
}

// Compile-time interface assertion.
var _ Extractor = (*PatternExtractor)(nil)

// NewPattern constructs a [PatternExtractor], compiling every lexicon pattern.
// Returns an error when a pattern does not compile.
func NewPattern(opts ...PatternOption) (*PatternExtractor, error) {
	p := &PatternExtractor{
		lexicon:        DefaultLexicon(),
		fuzzyThreshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(p)
	}

	// Compile in fixed category-priority order so candidate generation,
	// and therefore tie-breaking, is deterministic.
	for _, c := range []Category{CategoryVitalSign, CategoryMedication, CategoryCondition, CategorySymptom, CategoryProcedure} {
		for _, pattern := range p.lexicon.Patterns[c] {
			re, err := regexp.Compile(`(?i)` + pattern)
			if err != nil {
				return nil, fmt.Errorf("extract: compile %s pattern %q: %w", c, pattern, err)
			}
			p.rules = append(p.rules, rule{category: c, re: re})
		}
		for _, term := range p.lexicon.FuzzyTerms[c] {
			p.fuzzyTerms = append(p.fuzzyTerms, fuzzyTerm{category: c, term: strings.ToLower(term)})
		}
	}
	return p, nil
}

// Extract scans each utterance with the compiled pattern tables plus the
// fuzzy vocabulary pass, resolves overlapping spans, and returns the ordered,
// de-duplicated entity list. The returned error is always nil; the signature
// satisfies [Extractor].
func (p *PatternExtractor) Extract(_ context.Context, utterances []transcript.Utterance) ([]Entity, error) {
	entities := []Entity{}

	for _, u := range utterances {
		cands := p.scan(u.Text)
		for _, c := range resolveOverlaps(cands) {
			entities = append(entities, Entity{
				Text:       u.Text[c.start:c.end],
				Category:   c.category,
				Utterance:  u.Index,
				Confidence: c.confidence,
			})
		}
	}

	return dedupe(entities), nil
}

// scan produces all candidate spans for one utterance: exact pattern matches
// first, then fuzzy vocabulary hits for words not better explained by an
// exact match (overlap resolution handles the precedence).
func (p *PatternExtractor) scan(text string) []candidate {
	var cands []candidate

	for _, r := range p.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			cands = append(cands, candidate{
				start:      loc[0],
				end:        loc[1],
				category:   r.category,
				confidence: patternConfidence,
			})
		}
	}

	if p.fuzzyThreshold <= 1.0 && len(p.fuzzyTerms) > 0 {
		cands = append(cands, p.scanFuzzy(text)...)
	}

	return cands
}

// scanFuzzy compares each sufficiently long word against the fuzzy
// vocabulary and emits a candidate for the best term above the threshold.
func (p *PatternExtractor) scanFuzzy(text string) []candidate {
	var cands []candidate

	for _, loc := range wordRe.FindAllStringIndex(text, -1) {
		word := strings.ToLower(text[loc[0]:loc[1]])
		if len(word) < minFuzzyWordLen {
			continue
		}

		var (
			bestScore float64
			bestCat   Category
			found     bool
		)
		for _, ft := range p.fuzzyTerms {
			score := matchr.JaroWinkler(word, ft.term, false)
			if score >= p.fuzzyThreshold && score > bestScore {
				bestScore = score
				bestCat = ft.category
				found = true
			}
		}
		if found {
			cands = append(cands, candidate{
				start:      loc[0],
				end:        loc[1],
				category:   bestCat,
				confidence: bestScore,
				fuzzy:      true,
			})
		}
	}
	return cands
}

// resolveOverlaps selects a non-overlapping subset of candidates and returns
// it ordered by start offset.
//
// Precedence between overlapping candidates: exact pattern matches beat fuzzy
// hits, longer matches beat shorter ones, then the fixed category priority
// (vital sign, medication, condition, symptom, procedure), then the earlier
// start. This is what makes "chest pain" win over a nested "pain" match.
func resolveOverlaps(cands []candidate) []candidate {
	ranked := make([]candidate, len(cands))
	copy(ranked, cands)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.fuzzy != b.fuzzy {
			return !a.fuzzy
		}
		if la, lb := a.end-a.start, b.end-b.start; la != lb {
			return la > lb
		}
		if categoryPriority[a.category] != categoryPriority[b.category] {
			return categoryPriority[a.category] < categoryPriority[b.category]
		}
		return a.start < b.start
	})

	var selected []candidate
	for _, c := range ranked {
		overlaps := false
		for _, s := range selected {
			if c.start < s.end && s.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			selected = append(selected, c)
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].start < selected[j].start
	})
	return selected
}
