package llmner_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medisynth-ai/medisynth/pkg/provider/llm"
	"github.com/medisynth-ai/medisynth/pkg/provider/llm/mock"
	"github.com/medisynth-ai/medisynth/pkg/provider/ner/llmner"
)

func TestExtract_ParsesModelResponse(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"entities": [
				{"text": "chest pain", "label": "Sign_symptom", "confidence": 0.95},
				{"text": "ECG", "label": "Diagnostic_procedure", "confidence": 0.9}
			]}`,
		},
	}
	p := llmner.New(mockLLM)

	input := "I have chest pain since last night. Let's order an ECG."
	spans, err := p.Extract(context.Background(), input)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("Extract returned %d spans, want 2: %+v", len(spans), spans)
	}

	if spans[0].Text != "chest pain" || spans[0].Label != "Sign_symptom" {
		t.Errorf("span[0] = %+v", spans[0])
	}
	if want := strings.Index(input, "chest pain"); spans[0].Start != want {
		t.Errorf("span[0].Start = %d, want %d", spans[0].Start, want)
	}
	if spans[1].Text != "ECG" || spans[1].Confidence != 0.9 {
		t.Errorf("span[1] = %+v", spans[1])
	}
}

func TestExtract_StripsMarkdownFences(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n{\"entities\": [{\"text\": \"nausea\", \"label\": \"Sign_symptom\", \"confidence\": 0.8}]}\n```",
		},
	}
	p := llmner.New(mockLLM)

	spans, err := p.Extract(context.Background(), "I felt nausea this morning.")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "nausea" {
		t.Fatalf("spans = %+v, want single nausea span", spans)
	}
}

func TestExtract_UnparseableResponseIsAnError(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Sure! Here are the entities I found:"},
	}
	p := llmner.New(mockLLM)

	if _, err := p.Extract(context.Background(), "some text"); err == nil {
		t.Fatal("Extract with prose response returned nil error, want parse error")
	}
}

func TestExtract_ProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("connection refused")
	p := llmner.New(&mock.Provider{CompleteErr: backendErr})

	if _, err := p.Extract(context.Background(), "some text"); !errors.Is(err, backendErr) {
		t.Fatalf("Extract error = %v, want wrapped %v", err, backendErr)
	}
}

func TestExtract_DropsHallucinatedSpans(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"entities": [
				{"text": "pulmonary embolism", "label": "Disease_disorder", "confidence": 0.7},
				{"text": "headache", "label": "Sign_symptom", "confidence": 0.9}
			]}`,
		},
	}
	p := llmner.New(mockLLM)

	spans, err := p.Extract(context.Background(), "I have a headache.")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "headache" {
		t.Fatalf("spans = %+v, want only the headache span (hallucinated span dropped)", spans)
	}
}

func TestExtract_OffsetsSurviveCaseFoldingLengthChanges(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"entities": [{"text": "aspirin", "label": "Medication", "confidence": 0.9}]}`,
		},
	}
	p := llmner.New(mockLLM)

	// The Kelvin sign (U+212A) is three bytes but lowercases to a one-byte
	// "k", so offsets found in a lowercased copy would not line up with the
	// original text for anything after it.
	input := "Temp is 310 K today, take Aspirin nightly."
	spans, err := p.Extract(context.Background(), input)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("spans = %+v, want single aspirin span", spans)
	}
	if spans[0].Text != "Aspirin" {
		t.Errorf("span text = %q, want %q as it appears in the input", spans[0].Text, "Aspirin")
	}
	if want := strings.Index(input, "Aspirin"); spans[0].Start != want {
		t.Errorf("span Start = %d, want %d", spans[0].Start, want)
	}
	if got := input[spans[0].Start:spans[0].End]; got != "Aspirin" {
		t.Errorf("input[Start:End] = %q, want %q", got, "Aspirin")
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	t.Parallel()

	mockLLM := &mock.Provider{}
	p := llmner.New(mockLLM)

	spans, err := p.Extract(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if spans == nil || len(spans) != 0 {
		t.Fatalf("spans = %+v, want empty non-nil slice", spans)
	}
	if len(mockLLM.CompleteCalls) != 0 {
		t.Errorf("Complete called %d times for blank input, want 0", len(mockLLM.CompleteCalls))
	}
}
