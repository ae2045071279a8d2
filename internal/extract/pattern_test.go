package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/medisynth-ai/medisynth/internal/transcript"
)

func utter(index int, speaker transcript.Speaker, text string) transcript.Utterance {
	return transcript.Utterance{Speaker: speaker, Text: text, Index: index}
}

func TestPatternExtract_ChestPainSingleSymptom(t *testing.T) {
	t.Parallel()
	p, err := NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	entities, err := p.Extract(context.Background(), []transcript.Utterance{
		utter(0, transcript.SpeakerPatient, "I have been having chest pain for two days."),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1: %+v", len(entities), entities)
	}
	e := entities[0]
	if got := strings.ToLower(e.Text); got != "chest pain" {
		t.Errorf("entity text = %q, want %q", got, "chest pain")
	}
	if e.Category != CategorySymptom {
		t.Errorf("category = %q, want %q", e.Category, CategorySymptom)
	}
	if e.Confidence != patternConfidence {
		t.Errorf("confidence = %v, want %v", e.Confidence, patternConfidence)
	}
	if e.Utterance != 0 {
		t.Errorf("utterance index = %d, want 0", e.Utterance)
	}
}

func TestPatternExtract_SpokenBloodPressure(t *testing.T) {
	t.Parallel()
	p, err := NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	entities, err := p.Extract(context.Background(), []transcript.Utterance{
		utter(0, transcript.SpeakerDoctor, "Your blood pressure is 140 over 90 today."),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1: %+v", len(entities), entities)
	}
	if entities[0].Category != CategoryVitalSign {
		t.Errorf("category = %q, want %q", entities[0].Category, CategoryVitalSign)
	}
	if !strings.Contains(strings.ToLower(entities[0].Text), "140 over 90") {
		t.Errorf("entity text = %q, want it to contain the reading", entities[0].Text)
	}
}

func TestPatternExtract_Categories(t *testing.T) {
	t.Parallel()
	p, err := NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	tests := []struct {
		name     string
		text     string
		wantText string
		wantCat  Category
	}{
		{"procedure ecg", "Let's order an ECG to be safe.", "ecg", CategoryProcedure},
		{"medication", "I take lisinopril every morning.", "lisinopril", CategoryMedication},
		{"condition", "You have a history of hypertension.", "hypertension", CategoryCondition},
		{"symptom", "Any shortness of breath?", "shortness of breath", CategorySymptom},
		{"vital charted", "BP 120/80 at rest.", "bp 120/80", CategoryVitalSign},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			entities, err := p.Extract(context.Background(), []transcript.Utterance{
				utter(0, transcript.SpeakerDoctor, tc.text),
			})
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(entities) == 0 {
				t.Fatalf("no entities extracted from %q", tc.text)
			}
			found := false
			for _, e := range entities {
				if strings.ToLower(e.Text) == tc.wantText && e.Category == tc.wantCat {
					found = true
				}
			}
			if !found {
				t.Errorf("entities = %+v, want (%q, %s)", entities, tc.wantText, tc.wantCat)
			}
		})
	}
}

func TestPatternExtract_FuzzyMedication(t *testing.T) {
	t.Parallel()
	p, err := NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	// "asprin" is a common speech-to-text near-miss of "aspirin".
	entities, err := p.Extract(context.Background(), []transcript.Utterance{
		utter(0, transcript.SpeakerPatient, "I take asprin when the pain starts."),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var med *Entity
	for i := range entities {
		if entities[i].Category == CategoryMedication {
			med = &entities[i]
		}
	}
	if med == nil {
		t.Fatalf("no medication entity found in %+v", entities)
	}
	if strings.ToLower(med.Text) != "asprin" {
		t.Errorf("medication text = %q, want %q", med.Text, "asprin")
	}
	if med.Confidence < defaultFuzzyThreshold || med.Confidence >= 1.0 {
		t.Errorf("fuzzy confidence = %v, want in [%v, 1.0)", med.Confidence, defaultFuzzyThreshold)
	}
}

func TestPatternExtract_ExactBeatsFuzzy(t *testing.T) {
	t.Parallel()
	p, err := NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	entities, err := p.Extract(context.Background(), []transcript.Utterance{
		utter(0, transcript.SpeakerPatient, "I take aspirin daily."),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if len(entities) != 1 {
		t.Fatalf("got %d entities, want 1: %+v", len(entities), entities)
	}
	if entities[0].Confidence != patternConfidence {
		t.Errorf("confidence = %v, want fixed pattern confidence %v", entities[0].Confidence, patternConfidence)
	}
}

func TestPatternExtract_FuzzyDisabled(t *testing.T) {
	t.Parallel()
	p, err := NewPattern(WithFuzzyThreshold(1.1))
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	entities, err := p.Extract(context.Background(), []transcript.Utterance{
		utter(0, transcript.SpeakerPatient, "I take asprin sometimes."),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, e := range entities {
		if e.Category == CategoryMedication {
			t.Errorf("fuzzy pass disabled but got medication entity %+v", e)
		}
	}
}

func TestPatternExtract_OrderedByUtteranceThenPosition(t *testing.T) {
	t.Parallel()
	p, err := NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	entities, err := p.Extract(context.Background(), []transcript.Utterance{
		utter(0, transcript.SpeakerPatient, "The headache comes with nausea."),
		utter(1, transcript.SpeakerDoctor, "We'll order a blood test and an ECG."),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []struct {
		text string
		idx  int
	}{
		{"headache", 0},
		{"nausea", 0},
		{"blood test", 1},
		{"ecg", 1},
	}
	if len(entities) != len(want) {
		t.Fatalf("got %d entities, want %d: %+v", len(entities), len(want), entities)
	}
	for i, w := range want {
		if strings.ToLower(entities[i].Text) != w.text || entities[i].Utterance != w.idx {
			t.Errorf("entities[%d] = (%q, %d), want (%q, %d)",
				i, entities[i].Text, entities[i].Utterance, w.text, w.idx)
		}
	}
}

func TestPatternExtract_DedupeWithinUtterance(t *testing.T) {
	t.Parallel()
	p, err := NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	entities, err := p.Extract(context.Background(), []transcript.Utterance{
		utter(0, transcript.SpeakerPatient, "The cough is a dry cough."),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	count := 0
	for _, e := range entities {
		if strings.ToLower(e.Text) == "cough" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d cough entities in one utterance, want 1: %+v", count, entities)
	}
}

func TestPatternExtract_EmptyInput(t *testing.T) {
	t.Parallel()
	p, err := NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}

	entities, err := p.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if entities == nil {
		t.Fatal("entities is nil, want empty non-nil slice")
	}
	if len(entities) != 0 {
		t.Errorf("got %d entities from empty input", len(entities))
	}
}

func TestNewPattern_BadPattern(t *testing.T) {
	t.Parallel()
	lex := DefaultLexicon()
	lex.Patterns[CategorySymptom] = []string{`(unclosed`}

	if _, err := NewPattern(WithLexicon(lex)); err == nil {
		t.Fatal("expected error for invalid pattern, got nil")
	}
}

func TestResolveOverlaps_LongestWins(t *testing.T) {
	t.Parallel()
	cands := []candidate{
		{start: 19, end: 23, category: CategorySymptom, confidence: patternConfidence},  // "pain"
		{start: 13, end: 23, category: CategorySymptom, confidence: patternConfidence}, // "chest pain"
	}
	got := resolveOverlaps(cands)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(got), got)
	}
	if got[0].start != 13 || got[0].end != 23 {
		t.Errorf("selected = [%d,%d), want [13,23)", got[0].start, got[0].end)
	}
}

func TestResolveOverlaps_CategoryPriorityBreaksTies(t *testing.T) {
	t.Parallel()
	cands := []candidate{
		{start: 0, end: 8, category: CategorySymptom, confidence: patternConfidence},
		{start: 0, end: 8, category: CategoryMedication, confidence: patternConfidence},
	}
	got := resolveOverlaps(cands)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].category != CategoryMedication {
		t.Errorf("selected category = %q, want %q", got[0].category, CategoryMedication)
	}
}
