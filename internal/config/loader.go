package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"ner": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp"},
	"stt": {"whisper", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("ner", cfg.Providers.NER.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)

	// Provider availability warnings
	if cfg.Providers.NER.Name == "" {
		slog.Info("no NER provider configured; extraction will be pattern-only")
	}
	if needsAPIKey(cfg.Providers.NER.Name) && cfg.Providers.NER.APIKey == "" {
		slog.Warn("providers.ner has no api_key; the provider will likely reject requests",
			"name", cfg.Providers.NER.Name)
	}
	if cfg.Providers.STT.Name == "openai" && cfg.Providers.STT.APIKey == "" {
		slog.Warn("providers.stt is openai but has no api_key; transcription will likely fail")
	}
	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.BaseURL == "" {
		errs = append(errs, errors.New("providers.stt.base_url is required for the whisper provider"))
	}

	// Pipeline
	if t := cfg.Pipeline.FuzzyThreshold; t < 0 {
		errs = append(errs, fmt.Errorf("pipeline.fuzzy_threshold %.2f is negative; use a value in (0, 1] or above 1 to disable fuzzy matching", t))
	}
	if cfg.Pipeline.ModelTimeout < 0 {
		errs = append(errs, errors.New("pipeline.model_timeout is negative"))
	}
	if cfg.Pipeline.LexiconPath != "" {
		if _, err := os.Stat(cfg.Pipeline.LexiconPath); err != nil {
			errs = append(errs, fmt.Errorf("pipeline.lexicon_path %q: %w", cfg.Pipeline.LexiconPath, err))
		}
	}

	return errors.Join(errs...)
}

// needsAPIKey reports whether the named NER backend requires an API key.
// Local runtimes (ollama, llamacpp) do not.
func needsAPIKey(name string) bool {
	switch name {
	case "", "ollama", "llamacpp":
		return false
	}
	return true
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
