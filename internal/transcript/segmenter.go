// Package transcript defines the speaker-turn segmenter that splits a raw
// doctor-patient transcript into an ordered sequence of [Utterance] values.
//
// Transcripts arrive as plain text with lines optionally prefixed by a speaker
// label ("Doctor: ...", "Patient: ..."). The [Segmenter] assigns each line to a
// speaker; lines without a recognisable label inherit the previous line's
// speaker (carry-forward), or are tagged [SpeakerUnknown] when no prior speaker
// exists. Malformed input never produces an error; worst case the whole
// transcript becomes a single unknown-speaker utterance, which is logged as a
// warning so the degradation is visible.
package transcript

import (
	"log/slog"
	"strings"
)

// Speaker identifies who produced an utterance in the encounter.
type Speaker string

const (
	// SpeakerDoctor marks an utterance spoken by the clinician.
	SpeakerDoctor Speaker = "doctor"

	// SpeakerPatient marks an utterance spoken by the patient.
	SpeakerPatient Speaker = "patient"

	// SpeakerUnknown marks an utterance whose speaker could not be determined.
	SpeakerUnknown Speaker = "unknown"
)

// IsValid reports whether s is a recognised speaker.
func (s Speaker) IsValid() bool {
	switch s {
	case SpeakerDoctor, SpeakerPatient, SpeakerUnknown:
		return true
	}
	return false
}

// Format is a hint describing how the transcript text is laid out.
type Format string

const (
	// FormatLabeled indicates lines carry "Doctor:"/"Patient:" prefixes.
	FormatLabeled Format = "labeled"

	// FormatUnlabeled indicates no speaker labels are present; every line is
	// tagged [SpeakerUnknown].
	FormatUnlabeled Format = "unlabeled"
)

// Utterance is one speaker turn of the transcript. Values are immutable once
// produced; Index preserves source order and is what entity extraction uses
// to attribute matches back to a turn.
type Utterance struct {
	// Speaker is who produced this turn.
	Speaker Speaker

	// Text is the turn's content with the speaker label and surrounding
	// whitespace stripped.
	Text string

	// Index is the zero-based position of this utterance in the transcript.
	Index int
}

// defaultLabelAliases maps lower-cased speaker label prefixes to speakers.
// "dr" covers both "Dr:" and the common ASR spelling "DR:".
var defaultLabelAliases = map[string]Speaker{
	"doctor":    SpeakerDoctor,
	"dr":        SpeakerDoctor,
	"physician": SpeakerDoctor,
	"provider":  SpeakerDoctor,
	"patient":   SpeakerPatient,
	"pt":        SpeakerPatient,
}

// Option is a functional option for configuring a [Segmenter].
type Option func(*Segmenter)

// WithLabelAlias registers an additional speaker label (case-insensitive)
// recognised during segmentation, e.g. WithLabelAlias("nurse", SpeakerDoctor).
func WithLabelAlias(label string, speaker Speaker) Option {
	return func(s *Segmenter) {
		s.aliases[strings.ToLower(strings.TrimSpace(label))] = speaker
	}
}

// Segmenter splits raw transcript text into ordered utterances.
// It is read-only after construction and safe for concurrent use.
type Segmenter struct {
	aliases map[string]Speaker
}

// New returns a [Segmenter] with the default doctor/patient label aliases,
// extended by any supplied options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{aliases: make(map[string]Speaker, len(defaultLabelAliases))}
	for label, speaker := range defaultLabelAliases {
		s.aliases[label] = speaker
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Segment splits text into ordered utterances according to format.
//
// For [FormatLabeled] input, each non-empty line is checked for a
// "<label>: ..." prefix. Labeled lines switch the current speaker; unlabeled
// lines continue the previous speaker's turn as a new utterance, or fall back
// to [SpeakerUnknown] when no speaker has been seen yet. For
// [FormatUnlabeled] input every line is tagged [SpeakerUnknown].
//
// Empty and whitespace-only lines are dropped. Segment never fails: an empty
// transcript yields an empty (non-nil) slice, and a labeled-format transcript
// without a single recognisable label degrades to unknown-speaker utterances
// with a logged warning.
func (s *Segmenter) Segment(text string, format Format) []Utterance {
	utterances := []Utterance{}

	current := SpeakerUnknown
	sawLabel := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		speaker := current
		content := line

		if format == FormatLabeled {
			if sp, rest, ok := s.splitLabel(line); ok {
				speaker = sp
				content = rest
				current = sp
				sawLabel = true
			}
		} else {
			speaker = SpeakerUnknown
		}

		if content == "" {
			// A bare "Doctor:" line switches the speaker but adds no turn.
			continue
		}

		utterances = append(utterances, Utterance{
			Speaker: speaker,
			Text:    content,
			Index:   len(utterances),
		})
	}

	if format == FormatLabeled && !sawLabel && len(utterances) > 0 {
		slog.Warn("no speaker labels found in labeled transcript; proceeding with unknown speakers",
			"utterances", len(utterances),
		)
	}

	return utterances
}

// splitLabel checks whether line starts with a recognised "<label>:" prefix
// and returns the speaker and the remaining content.
func (s *Segmenter) splitLabel(line string) (Speaker, string, bool) {
	label, rest, found := strings.Cut(line, ":")
	if !found {
		return SpeakerUnknown, "", false
	}

	speaker, ok := s.aliases[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return SpeakerUnknown, "", false
	}
	return speaker, strings.TrimSpace(rest), true
}
