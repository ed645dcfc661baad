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

// ValidProviderNames lists known ASR provider names. Used by [Validate] to
// warn about unrecognised names.
var ValidProviderNames = []string{"openai", "whisper", "whisper-native"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("providers.asr", cfg.Providers.ASR.Name)
	for i, fb := range cfg.Providers.Fallbacks {
		prefix := fmt.Sprintf("providers.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		validateProviderName(prefix, fb.Name)
	}
	if cfg.Providers.ASR.Name == "" {
		slog.Warn("no ASR provider configured; timings will always be synthesized estimates")
	}

	if cfg.Cache.Backend != "" && !cfg.Cache.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("cache.backend %q is invalid; valid values: memory, file, postgres", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend == CacheFile && cfg.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required when cache.backend is file"))
	}
	if cfg.Cache.Backend == CachePostgres && cfg.Cache.PostgresDSN == "" {
		errs = append(errs, errors.New("cache.postgres_dsn is required when cache.backend is postgres"))
	}

	if cfg.Sync.WordsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("sync.words_per_second %.2f must not be negative", cfg.Sync.WordsPerSecond))
	}
	if cfg.Sync.PollIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("sync.poll_interval_ms %d must not be negative", cfg.Sync.PollIntervalMs))
	}
	if cfg.Sync.Lookahead < 0 {
		errs = append(errs, fmt.Errorf("sync.lookahead %d must not be negative", cfg.Sync.Lookahead))
	}

	if cfg.Audio.MaxFetchBytes < 0 {
		errs = append(errs, fmt.Errorf("audio.max_fetch_bytes %d must not be negative", cfg.Audio.MaxFetchBytes))
	}
	if cfg.Audio.FetchTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("audio.fetch_timeout_ms %d must not be negative", cfg.Audio.FetchTimeoutMs))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not in
// [ValidProviderNames].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}
