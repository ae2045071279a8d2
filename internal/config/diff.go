package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; server address and
// TLS changes require a restart and are reported separately.
type ConfigDiff struct {
	// LogLevelChanged is true when server.log_level differs.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged is true when any pipeline tuning field differs; the
	// note-generation pipeline must be rebuilt to apply it.
	PipelineChanged bool

	// ProvidersChanged is true when the NER or STT provider entry differs;
	// the affected provider must be reconstructed.
	ProvidersChanged bool

	// RestartRequired is true when the listen address, log format, or TLS
	// settings differ; these cannot be applied to a running server.
	RestartRequired bool
}

// Empty reports whether the diff contains no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PipelineChanged && !d.ProvidersChanged && !d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Pipeline != new.Pipeline {
		d.PipelineChanged = true
	}

	// ProviderEntry holds an Options map, so reflect.DeepEqual is used here.
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.ProvidersChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.LogFormat != new.Server.LogFormat ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = true
	}

	return d
}
