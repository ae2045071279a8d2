// Package mock provides a test double for the ner.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/medisynth-ai/medisynth/pkg/provider/ner"
)

// ExtractCall records a single invocation of Extract.
type ExtractCall struct {
	// Ctx is the context passed to Extract.
	Ctx context.Context
	// Text is the input passed to Extract.
	Text string
}

// Provider is a mock implementation of ner.Provider.
// Zero values cause Extract to return an empty span list; set Err to inject
// a provider failure.
type Provider struct {
	mu sync.Mutex

	// Spans is returned by Extract.
	Spans []ner.Span

	// Err, if non-nil, is returned as the error from Extract.
	Err error

	// ExtractCalls records every invocation of Extract in order.
	ExtractCalls []ExtractCall
}

// Compile-time interface assertion.
var _ ner.Provider = (*Provider)(nil)

// Extract records the call and returns Spans, Err.
func (p *Provider) Extract(ctx context.Context, text string) ([]ner.Span, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExtractCalls = append(p.ExtractCalls, ExtractCall{Ctx: ctx, Text: text})
	if p.Err != nil {
		return nil, p.Err
	}
	spans := make([]ner.Span, len(p.Spans))
	copy(spans, p.Spans)
	return spans, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ExtractCalls = nil
}
