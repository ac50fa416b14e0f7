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
	"recognizer":  {"openai", "whisper"},
	"generator":   {"openai", "groq", "ollama", "anthropic", "gemini", "deepseek", "mistral", "llamacpp", "llamafile"},
	"synthesizer": {"elevenlabs", "coqui"},
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
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("recognizer", cfg.Providers.Recognizer.Name)
	validateProviderName("generator", cfg.Providers.Generator.Name)
	validateProviderName("synthesizer", cfg.Providers.Synthesizer.Name)

	if cfg.Providers.Generator.Name == "" {
		errs = append(errs, errors.New("providers.generator is required; NPCs cannot reply without one"))
	}
	if cfg.Providers.Synthesizer.Name == "" {
		errs = append(errs, errors.New("providers.synthesizer is required; replies must be spoken"))
	}
	if cfg.Providers.Recognizer.Name == "" {
		slog.Warn("no recognizer configured; audio-mode requests will be rejected")
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: postgres, memory", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
	}
	if cfg.Storage.Backend == StorageMemory || cfg.Storage.Backend == "" {
		slog.Warn("storage backend is in-memory; personas and history will not survive a restart")
	}

	// Conversation
	if cfg.Conversation.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("conversation.history_window %d must not be negative", cfg.Conversation.HistoryWindow))
	}
	if cfg.Conversation.StageTimeout < 0 {
		errs = append(errs, errors.New("conversation.stage_timeout must not be negative"))
	}

	return errors.Join(errs...)
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
