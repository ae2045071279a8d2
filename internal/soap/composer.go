package soap

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medisynth-ai/medisynth/internal/extract"
	"github.com/medisynth-ai/medisynth/internal/transcript"
)

// hedgeCues in a doctor utterance turn a condition bullet from "Consider"
// into "Rule out".
var hedgeCues = []string{"could be", "possibility", "possibly", "rule out", "might be"}

// followUpCues mark the doctor sentence that becomes the Plan's follow-up
// line.
var followUpCues = []string{"return in", "follow-up", "follow up", "come back"}

// ComposerOption is a functional option for configuring a [Composer].
type ComposerOption func(*Composer)

// WithClock replaces the time source, for reproducible note timestamps.
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) {
		c.now = now
	}
}

// WithIDFunc replaces the note ID source, for reproducible note IDs.
func WithIDFunc(newID func() uuid.UUID) ComposerOption {
	return func(c *Composer) {
		c.newID = newID
	}
}

// Composer builds SOAP notes from transcript turns and extracted entities.
// Aside from the note ID and timestamp, composition is a pure function of
// its inputs. Composer holds no per-call state and is safe for concurrent
// use.
type Composer struct {
	now   func() time.Time
	newID func() uuid.UUID
}

// NewComposer constructs a [Composer] with the real clock and random IDs.
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{
		now:   time.Now,
		newID: uuid.New,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose applies the four section rule sets and returns the note. It never
// fails: a transcript with nothing to document yields a note of placeholder
// sections.
func (c *Composer) Compose(utterances []transcript.Utterance, entities []extract.Entity) *Note {
	byIndex := make(map[int]transcript.Utterance, len(utterances))
	for _, u := range utterances {
		byIndex[u.Index] = u
	}

	kept := make([]extract.Entity, len(entities))
	copy(kept, entities)

	return &Note{
		ID:          c.newID(),
		GeneratedAt: c.now(),
		Subjective:  composeSubjective(byIndex, entities),
		Objective:   composeObjective(entities),
		Assessment:  composeAssessment(byIndex, entities),
		Plan:        composePlan(utterances, byIndex, entities),
		Entities:    kept,
	}
}

// speakerOf resolves the speaker of the utterance an entity was found in.
func speakerOf(byIndex map[int]transcript.Utterance, e extract.Entity) transcript.Speaker {
	u, ok := byIndex[e.Utterance]
	if !ok {
		return transcript.SpeakerUnknown
	}
	return u.Speaker
}

// composeSubjective builds the patient-reported section: a chief-complaint
// line, the narrative of entity-bearing patient utterances, and bullets for
// medications the patient reports taking.
func composeSubjective(byIndex map[int]transcript.Utterance, entities []extract.Entity) string {
	var parts []string

	chief := PlaceholderChiefComplaint
	for _, e := range entities {
		if e.Category != extract.CategorySymptom && e.Category != extract.CategoryCondition {
			continue
		}
		if speakerOf(byIndex, e) == transcript.SpeakerPatient {
			chief = e.Text
			break
		}
	}
	parts = append(parts, "Chief Complaint: "+chief)

	// Narrative: every patient utterance carrying at least one entity, in
	// transcript order, trimmed and terminally punctuated.
	var indices []int
	for _, e := range entities {
		if u, ok := byIndex[e.Utterance]; ok && u.Speaker == transcript.SpeakerPatient {
			if !slices.Contains(indices, e.Utterance) {
				indices = append(indices, e.Utterance)
			}
		}
	}
	for _, i := range indices {
		parts = append(parts, ensurePunctuated(strings.TrimSpace(byIndex[i].Text)))
	}

	for _, e := range entities {
		if e.Category == extract.CategoryMedication && speakerOf(byIndex, e) == transcript.SpeakerPatient {
			parts = append(parts, "• Reports taking "+e.Text)
		}
	}

	if len(parts) == 1 && chief == PlaceholderChiefComplaint {
		return "Chief Complaint: " + PlaceholderChiefComplaint + "\n" + PlaceholderSubjective
	}
	return strings.Join(parts, "\n")
}

// composeObjective renders vital-sign entities as charted "Label: value"
// lines in first-mention order. The physical-exam line is always a
// placeholder.
func composeObjective(entities []extract.Entity) string {
	var lines []string
	seen := make(map[string]bool)

	for _, e := range entities {
		if e.Category != extract.CategoryVitalSign {
			continue
		}
		line := normalizeVital(e.Text)
		if seen[line] {
			continue
		}
		seen[line] = true
		lines = append(lines, "• "+line)
	}

	var sb strings.Builder
	if len(lines) == 0 {
		sb.WriteString("Vital Signs: " + PlaceholderExam + "\n")
	} else {
		sb.WriteString("Vital Signs:\n")
		sb.WriteString(strings.Join(lines, "\n") + "\n")
	}
	sb.WriteString("Physical Examination: " + PlaceholderExam)
	return sb.String()
}

// composeAssessment emits one bullet per distinct condition, phrased
// "Rule out" when the owning doctor utterance hedges, otherwise "Consider".
func composeAssessment(byIndex map[int]transcript.Utterance, entities []extract.Entity) string {
	var bullets []string
	seen := make(map[string]bool)

	for _, e := range entities {
		if e.Category != extract.CategoryCondition {
			continue
		}
		key := strings.ToLower(e.Text)
		if seen[key] {
			continue
		}
		seen[key] = true

		verb := "Consider"
		if u, ok := byIndex[e.Utterance]; ok && u.Speaker == transcript.SpeakerDoctor && containsAny(u.Text, hedgeCues) {
			verb = "Rule out"
		}
		bullets = append(bullets, "• "+verb+" "+e.Text)
	}

	if len(bullets) == 0 {
		return PlaceholderAssessment
	}
	return strings.Join(bullets, "\n")
}

// composePlan emits ordered-procedure bullets, doctor-mentioned medication
// bullets, and a follow-up line quoted from the first cueing doctor sentence.
func composePlan(utterances []transcript.Utterance, byIndex map[int]transcript.Utterance, entities []extract.Entity) string {
	var parts []string

	var procedures []string
	seenProc := make(map[string]bool)
	for _, e := range entities {
		if e.Category != extract.CategoryProcedure {
			continue
		}
		key := strings.ToLower(e.Text)
		if seenProc[key] {
			continue
		}
		seenProc[key] = true
		procedures = append(procedures, "• Order "+e.Text)
	}
	if len(procedures) > 0 {
		parts = append(parts, "Diagnostic Studies:")
		parts = append(parts, procedures...)
	}

	var meds []string
	seenMed := make(map[string]bool)
	for _, e := range entities {
		if e.Category != extract.CategoryMedication || speakerOf(byIndex, e) != transcript.SpeakerDoctor {
			continue
		}
		key := strings.ToLower(e.Text)
		if seenMed[key] {
			continue
		}
		seenMed[key] = true
		meds = append(meds, "• "+e.Text)
	}
	if len(meds) > 0 {
		parts = append(parts, "Medications:")
		parts = append(parts, meds...)
	}

	parts = append(parts, "Follow-up: "+followUpLine(utterances))

	return strings.Join(parts, "\n")
}

// followUpLine returns the first doctor sentence carrying a follow-up cue,
// verbatim apart from trimming, or the default.
func followUpLine(utterances []transcript.Utterance) string {
	for _, u := range utterances {
		if u.Speaker != transcript.SpeakerDoctor {
			continue
		}
		for _, sentence := range splitSentences(u.Text) {
			if containsAny(sentence, followUpCues) {
				return ensurePunctuated(strings.TrimSpace(sentence))
			}
		}
	}
	return DefaultFollowUp
}

// splitSentences is a rough sentence splitter on terminal punctuation,
// sufficient for follow-up quoting.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// ensurePunctuated appends a period when the text lacks terminal punctuation.
func ensurePunctuated(text string) string {
	if text == "" {
		return text
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return text + "."
}

// containsAny reports whether text contains any of the cues,
// case-insensitively.
func containsAny(text string, cues []string) bool {
	lower := strings.ToLower(text)
	for _, cue := range cues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}
