package extract

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/medisynth-ai/medisynth/internal/observe"
	"github.com/medisynth-ai/medisynth/internal/transcript"
)

// CompositeOption is a functional option for configuring a [Composite].
type CompositeOption func(*Composite)

// WithMetrics attaches a [observe.Metrics] instance so fallbacks and entity
// counts are recorded. When nil (the default), no metrics are emitted.
func WithMetrics(m *observe.Metrics) CompositeOption {
	return func(c *Composite) {
		c.metrics = m
	}
}

// Composite implements the selection policy between the model-backed and
// pattern-backed extraction strategies: the model is tried first and any
// failure falls back to patterns without surfacing an error. Extraction
// through a Composite always succeeds, possibly with lower recall.
//
// Composite is safe for concurrent use.
type Composite struct {
	model    Extractor
	fallback Extractor
	metrics  *observe.Metrics
}

// Compile-time interface assertion.
var _ Extractor = (*Composite)(nil)

// NewComposite builds a [Composite]. model may be nil, in which case the
// pattern fallback is used directly; fallback must be non-nil and must never
// fail (a [PatternExtractor] satisfies this).
func NewComposite(model, fallback Extractor, opts ...CompositeOption) *Composite {
	c := &Composite{
		model:    model,
		fallback: fallback,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Extract implements [Extractor]. The returned error is always nil.
func (c *Composite) Extract(ctx context.Context, utterances []transcript.Utterance) ([]Entity, error) {
	if c.model != nil {
		entities, err := c.model.Extract(ctx, utterances)
		if err == nil {
			c.count(ctx, entities, "model")
			return entities, nil
		}

		observe.Logger(ctx).Warn("model extraction failed; falling back to pattern matching",
			"err", err,
		)
		if c.metrics != nil {
			c.metrics.ExtractorFallbacks.Add(ctx, 1)
		}
	}

	entities, err := c.fallback.Extract(ctx, utterances)
	if err != nil {
		// The pattern extractor cannot fail; guard against a misbehaving
		// custom fallback so the no-error contract holds.
		slog.Error("fallback extractor failed; returning empty entity list", "err", err)
		return []Entity{}, nil
	}
	c.count(ctx, entities, "pattern")
	return entities, nil
}

// count records per-category entity counts for the given strategy.
func (c *Composite) count(ctx context.Context, entities []Entity, strategy string) {
	if c.metrics == nil {
		return
	}
	for _, e := range entities {
		c.metrics.EntitiesExtracted.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", string(e.Category)),
			attribute.String("strategy", strategy),
		))
	}
}
