// Package pipeline wires the transcript segmenter, entity extractor, and
// SOAP composer into the single note-generation entry point.
//
// Generation is a linear, stateless, request-scoped transformation and is
// total: for any input text a note is returned, degrading to placeholder
// sections rather than failing.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/medisynth-ai/medisynth/internal/extract"
	"github.com/medisynth-ai/medisynth/internal/observe"
	"github.com/medisynth-ai/medisynth/internal/soap"
	"github.com/medisynth-ai/medisynth/internal/transcript"
)

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithSegmenter replaces the default [transcript.Segmenter].
func WithSegmenter(s *transcript.Segmenter) Option {
	return func(g *Generator) {
		g.segmenter = s
	}
}

// WithComposer replaces the default [soap.Composer].
func WithComposer(c *soap.Composer) Option {
	return func(g *Generator) {
		g.composer = c
	}
}

// WithMetrics attaches pipeline metrics. When nil (the default), no metrics
// are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) {
		g.metrics = m
	}
}

// Generator runs the full transcript-to-note pipeline. It holds no mutable
// state between calls and is safe for concurrent use; concurrent invocations
// operate on independently allocated utterance, entity, and note values.
type Generator struct {
	segmenter *transcript.Segmenter
	extractor extract.Extractor
	composer  *soap.Composer
	metrics   *observe.Metrics
}

// New constructs a [Generator] around the given extractor. An
// [extract.Composite] keeps generation total even when the model-backed
// strategy is down.
func New(extractor extract.Extractor, opts ...Option) *Generator {
	g := &Generator{
		segmenter: transcript.New(),
		extractor: extractor,
		composer:  soap.NewComposer(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate turns raw transcript text into a SOAP note. It never fails: empty
// or unlabeled input yields a note of placeholder sections.
func (g *Generator) Generate(ctx context.Context, text string, format transcript.Format) *soap.Note {
	ctx, span := observe.StartSpan(ctx, "pipeline.generate")
	defer span.End()

	start := time.Now()

	utterances := g.segment(ctx, text, format)
	entities := g.extract(ctx, utterances)
	note := g.compose(ctx, utterances, entities)

	if g.metrics != nil {
		g.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
		g.metrics.NotesGenerated.Add(ctx, 1)
	}
	span.SetAttributes(
		attribute.Int("utterances", len(utterances)),
		attribute.Int("entities", len(entities)),
	)
	observe.Logger(ctx).Info("note generated",
		"note_id", note.ID,
		"utterances", len(utterances),
		"entities", len(entities),
	)

	return note
}

func (g *Generator) segment(ctx context.Context, text string, format transcript.Format) []transcript.Utterance {
	ctx, span := observe.StartSpan(ctx, "pipeline.segment")
	defer span.End()
	defer g.observeDuration(ctx, time.Now(), func(m *observe.Metrics) metric.Float64Histogram { return m.SegmentDuration })

	return g.segmenter.Segment(text, format)
}

func (g *Generator) extract(ctx context.Context, utterances []transcript.Utterance) []extract.Entity {
	ctx, span := observe.StartSpan(ctx, "pipeline.extract")
	defer span.End()
	defer g.observeDuration(ctx, time.Now(), func(m *observe.Metrics) metric.Float64Histogram { return m.ExtractDuration })

	entities, err := g.extractor.Extract(ctx, utterances)
	if err != nil {
		// Extractor contract: never fails. Guard anyway so note generation
		// stays total.
		observe.Logger(ctx).Error("extractor failed; composing without entities", "err", err)
		return []extract.Entity{}
	}
	return entities
}

func (g *Generator) compose(ctx context.Context, utterances []transcript.Utterance, entities []extract.Entity) *soap.Note {
	ctx, span := observe.StartSpan(ctx, "pipeline.compose")
	defer span.End()
	defer g.observeDuration(ctx, time.Now(), func(m *observe.Metrics) metric.Float64Histogram { return m.ComposeDuration })

	return g.composer.Compose(utterances, entities)
}

// observeDuration records time elapsed since start to the picked histogram,
// when metrics are attached.
func (g *Generator) observeDuration(ctx context.Context, start time.Time, pick func(*observe.Metrics) metric.Float64Histogram) {
	if g.metrics == nil {
		return
	}
	pick(g.metrics).Record(ctx, time.Since(start).Seconds())
}
