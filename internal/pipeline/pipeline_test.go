package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/medisynth-ai/medisynth/internal/extract"
	"github.com/medisynth-ai/medisynth/internal/observe"
	"github.com/medisynth-ai/medisynth/internal/soap"
	"github.com/medisynth-ai/medisynth/internal/transcript"
)

const exampleTranscript = "Doctor: What brings you in?\nPatient: I have chest pain since last night.\nDoctor: Let's order an ECG."

func newGenerator(t *testing.T, opts ...Option) *Generator {
	t.Helper()
	pattern, err := extract.NewPattern()
	if err != nil {
		t.Fatalf("NewPattern: %v", err)
	}
	return New(extract.NewComposite(nil, pattern), opts...)
}

func fixedComposer() *soap.Composer {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return soap.NewComposer(
		soap.WithIDFunc(func() uuid.UUID { return id }),
		soap.WithClock(func() time.Time { return ts }),
	)
}

func TestGenerate_ExampleEncounter(t *testing.T) {
	t.Parallel()
	g := newGenerator(t)

	note := g.Generate(context.Background(), exampleTranscript, transcript.FormatLabeled)

	var sawSymptom, sawProcedure bool
	for _, e := range note.Entities {
		if strings.EqualFold(e.Text, "chest pain") && e.Category == extract.CategorySymptom {
			sawSymptom = true
		}
		if strings.EqualFold(e.Text, "ecg") && e.Category == extract.CategoryProcedure {
			sawProcedure = true
		}
	}
	if !sawSymptom {
		t.Errorf("entities = %+v, want a chest pain symptom", note.Entities)
	}
	if !sawProcedure {
		t.Errorf("entities = %+v, want an ECG procedure", note.Entities)
	}

	if !strings.Contains(note.Subjective, "Chief Complaint: chest pain") {
		t.Errorf("Subjective = %q, want chief complaint mentioning chest pain", note.Subjective)
	}
	if !strings.Contains(note.Plan, "Order ECG") {
		t.Errorf("Plan = %q, want an ECG order bullet", note.Plan)
	}
}

func TestGenerate_NeverFailsAndSectionsNonEmpty(t *testing.T) {
	t.Parallel()
	g := newGenerator(t)

	inputs := []string{
		"",
		"   \n\t  \n",
		"no labels anywhere just words",
		exampleTranscript,
		"Doctor: blood pressure is 140 over 90",
	}
	for _, in := range inputs {
		note := g.Generate(context.Background(), in, transcript.FormatLabeled)
		if note == nil {
			t.Fatalf("Generate(%q) returned nil note", in)
		}
		for name, section := range map[string]string{
			"Subjective": note.Subjective,
			"Objective":  note.Objective,
			"Assessment": note.Assessment,
			"Plan":       note.Plan,
		} {
			if strings.TrimSpace(section) == "" {
				t.Errorf("Generate(%q): %s section empty, want placeholder", in, name)
			}
		}
	}
}

func TestGenerate_UnlabeledTranscriptPlaceholderChiefComplaint(t *testing.T) {
	t.Parallel()
	g := newGenerator(t)

	note := g.Generate(context.Background(), "severe chest pain and nausea all night", transcript.FormatLabeled)

	if !strings.Contains(note.Subjective, "Chief Complaint: "+soap.PlaceholderChiefComplaint) {
		t.Errorf("Subjective = %q, want placeholder chief complaint for unlabeled input", note.Subjective)
	}
}

func TestGenerate_VitalsNormalised(t *testing.T) {
	t.Parallel()
	g := newGenerator(t)

	note := g.Generate(context.Background(),
		"Doctor: Your blood pressure is 140 over 90 today.",
		transcript.FormatLabeled)

	if !strings.Contains(note.Objective, "Blood Pressure: 140/90") {
		t.Errorf("Objective = %q, want normalised blood pressure line", note.Objective)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	t.Parallel()
	g := newGenerator(t, WithComposer(fixedComposer()))

	a := g.Generate(context.Background(), exampleTranscript, transcript.FormatLabeled)
	b := g.Generate(context.Background(), exampleTranscript, transcript.FormatLabeled)

	if a.Render() != b.Render() {
		t.Error("two generations of identical input differ")
	}
}

// erroringExtractor violates the extractor contract on purpose.
type erroringExtractor struct{}

func (erroringExtractor) Extract(context.Context, []transcript.Utterance) ([]extract.Entity, error) {
	return nil, errors.New("broken")
}

func TestGenerate_SurvivesMisbehavingExtractor(t *testing.T) {
	t.Parallel()
	g := New(erroringExtractor{})

	note := g.Generate(context.Background(), exampleTranscript, transcript.FormatLabeled)
	if note == nil {
		t.Fatal("Generate returned nil")
	}
	if len(note.Entities) != 0 {
		t.Errorf("entities = %+v, want none from a failing extractor", note.Entities)
	}
}

func TestGenerate_RecordsMetrics(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	g := newGenerator(t, WithMetrics(m))
	g.Generate(context.Background(), exampleTranscript, transcript.FormatLabeled)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := map[string]bool{
		"medisynth.segment.duration":  false,
		"medisynth.extract.duration":  false,
		"medisynth.compose.duration":  false,
		"medisynth.pipeline.duration": false,
		"medisynth.notes.generated":   false,
	}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if _, ok := want[md.Name]; ok {
				want[md.Name] = true
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %q not recorded", name)
		}
	}
}
