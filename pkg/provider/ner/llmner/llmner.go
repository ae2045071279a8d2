// Package llmner implements the [ner.Provider] interface on top of a generic
// [llm.Provider].
//
// The model is instructed via a conservative system prompt to return the
// clinical entities it finds as a structured JSON document. Because LLM
// output is not guaranteed to be valid JSON, an unparseable response is
// reported as an error; the extraction layer treats that the same as any
// other provider failure and falls back to pattern matching.
package llmner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/medisynth-ai/medisynth/pkg/provider/llm"
	"github.com/medisynth-ai/medisynth/pkg/provider/ner"
)

const defaultTemperature = 0.1

// systemPrompt instructs the model to act as a clinical NER tagger.
const systemPrompt = `You are a clinical named-entity-recognition tagger for doctor-patient transcripts.

Your task: list every clinically relevant span in the provided text.

Rules:
- Label each span with exactly one of: Sign_symptom, Medication, Vital_sign, Disease_disorder, Diagnostic_procedure.
- Report the span text exactly as it appears in the input, without rephrasing.
- Do NOT invent findings that are not present in the text.
- Assign a confidence between 0.0 and 1.0 to each span.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "entities": [
    {"text": "<span text>", "label": "<label>", "confidence": <0.0-1.0>}
  ]
}

If no entities are present, return an empty entities array.`

// llmResponse is the expected JSON structure returned by the model.
type llmResponse struct {
	Entities []struct {
		Text       string  `json:"text"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic tagging. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(p *Provider) {
		p.temperature = temp
	}
}

// Provider tags clinical entities using an [llm.Provider]. It is safe for
// concurrent use.
//
// Model selection follows the one-provider-per-model pattern: construct the
// [llm.Provider] with the desired model rather than overriding per request.
type Provider struct {
	llm         llm.Provider
	temperature float64
}

// Compile-time interface assertion.
var _ ner.Provider = (*Provider)(nil)

// New returns a new [Provider] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Provider {
	p := &Provider{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Extract implements [ner.Provider]. Spans are returned with byte offsets
// located by a forward scan over the input, so repeated mentions map to
// successive occurrences.
func (p *Provider) Extract(ctx context.Context, text string) ([]ner.Span, error) {
	if strings.TrimSpace(text) == "" {
		return []ner.Span{}, nil
	}

	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  p.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llmner: complete: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("llmner: empty response")
	}

	return parseResponse(resp.Content, text)
}

// parseResponse unmarshals the model output and resolves span offsets.
// Spans whose text cannot be found in the input are dropped rather than
// reported with bogus offsets.
func parseResponse(content, input string) ([]ner.Span, error) {
	var r llmResponse
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &r); err != nil {
		return nil, fmt.Errorf("llmner: parse response: %w", err)
	}

	spans := make([]ner.Span, 0, len(r.Entities))
	cursor := 0

	for _, e := range r.Entities {
		if e.Text == "" || e.Label == "" {
			continue
		}

		start, end := foldIndex(input, e.Text, cursor)
		if start < 0 {
			// Mention order did not match input order; retry from the top.
			start, end = foldIndex(input, e.Text, 0)
		}
		if start < 0 {
			continue
		}
		if end > cursor {
			cursor = end
		}

		spans = append(spans, ner.Span{
			Text:       input[start:end],
			Label:      e.Label,
			Confidence: e.Confidence,
			Start:      start,
			End:        end,
		})
	}
	return spans, nil
}

// foldIndex reports the byte range of the first case-insensitive occurrence
// of needle in s at or after offset from, or (-1, -1). The range is measured
// on s itself, never on a lowercased copy: case mapping can change byte
// lengths (e.g. the Kelvin sign lowercases from three bytes to one), so
// offsets into a lowered string do not transfer back to the original.
func foldIndex(s, needle string, from int) (int, int) {
	nRunes := utf8.RuneCountInString(needle)
	if nRunes == 0 {
		return -1, -1
	}
	for i := from; i < len(s); {
		end := i
		runes := 0
		for runes < nRunes && end < len(s) {
			_, size := utf8.DecodeRuneInString(s[end:])
			end += size
			runes++
		}
		if runes == nRunes && strings.EqualFold(s[i:end], needle) {
			return i, end
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
