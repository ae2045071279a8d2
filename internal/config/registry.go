package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/medisynth-ai/medisynth/pkg/provider/llm/anyllm"
	"github.com/medisynth-ai/medisynth/pkg/provider/ner"
	"github.com/medisynth-ai/medisynth/pkg/provider/ner/llmner"
	"github.com/medisynth-ai/medisynth/pkg/provider/stt"
	sttopenai "github.com/medisynth-ai/medisynth/pkg/provider/stt/openai"
	"github.com/medisynth-ai/medisynth/pkg/provider/stt/whisper"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ner map[string]func(ProviderEntry) (ner.Provider, error)
	stt map[string]func(ProviderEntry) (stt.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		ner: make(map[string]func(ProviderEntry) (ner.Provider, error)),
		stt: make(map[string]func(ProviderEntry) (stt.Provider, error)),
	}
}

// DefaultRegistry returns a [Registry] preloaded with the built-in provider
// factories: every LLM backend name from [ValidProviderNames] for NER, plus
// the whisper and openai STT backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, name := range ValidProviderNames["ner"] {
		r.RegisterNER(name, llmNERFactory(name))
	}

	r.RegisterSTT("whisper", func(entry ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang, ok := entry.Options["language"].(string); ok {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})
	r.RegisterSTT("openai", func(entry ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang, ok := entry.Options["language"].(string); ok {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	return r
}

// llmNERFactory builds an NER provider that prompts the named LLM backend
// for structured entity output.
func llmNERFactory(backend string) func(ProviderEntry) (ner.Provider, error) {
	return func(entry ProviderEntry) (ner.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}

		p, err := anyllm.New(backend, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return llmner.New(p), nil
	}
}

// RegisterNER registers an NER provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterNER(name string, factory func(ProviderEntry) (ner.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ner[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateNER instantiates an NER provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateNER(entry ProviderEntry) (ner.Provider, error) {
	r.mu.RLock()
	factory, ok := r.ner[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: ner/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
