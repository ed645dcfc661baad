package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eliasvob/readsync/pkg/provider/asr"
	asrmock "github.com/eliasvob/readsync/pkg/provider/asr/mock"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: "debug"
providers:
  asr:
    name: openai
    api_key: sk-test
    model: whisper-1
  fallbacks:
    - name: whisper
      base_url: http://localhost:8090
cache:
  backend: file
  path: /var/lib/readsync/cache
offsets:
  path: /var/lib/readsync/offsets.json
sync:
  words_per_second: 3.3
  poll_interval_ms: 100
  lookahead: 8
  phonetic: true
audio:
  max_fetch_bytes: 26214400
  fetch_timeout_ms: 30000
`

func TestLoadFromReader_FullConfig(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Providers.ASR.Name != "openai" || cfg.Providers.ASR.Model != "whisper-1" {
		t.Errorf("asr entry = %+v", cfg.Providers.ASR)
	}
	if len(cfg.Providers.Fallbacks) != 1 || cfg.Providers.Fallbacks[0].Name != "whisper" {
		t.Errorf("fallbacks = %+v", cfg.Providers.Fallbacks)
	}
	if cfg.Cache.Backend != CacheFile {
		t.Errorf("cache backend = %q, want file", cfg.Cache.Backend)
	}
	if cfg.Sync.WordsPerSecond != 3.3 {
		t.Errorf("words_per_second = %v, want 3.3", cfg.Sync.WordsPerSecond)
	}
	if !cfg.Sync.Phonetic {
		t.Error("phonetic = false, want true")
	}
	if cfg.Audio.MaxFetchBytes != 26214400 {
		t.Errorf("max_fetch_bytes = %v", cfg.Audio.MaxFetchBytes)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listen_adr: ':8080'\n"))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.ASR.Name != "openai" {
		t.Errorf("asr provider = %q, want openai", cfg.Providers.ASR.Name)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "bad log level",
			cfg:  Config{Server: ServerConfig{LogLevel: "loud"}},
			want: "log_level",
		},
		{
			name: "bad cache backend",
			cfg:  Config{Cache: CacheConfig{Backend: "redis"}},
			want: "cache.backend",
		},
		{
			name: "file backend without path",
			cfg:  Config{Cache: CacheConfig{Backend: CacheFile}},
			want: "cache.path",
		},
		{
			name: "postgres backend without dsn",
			cfg:  Config{Cache: CacheConfig{Backend: CachePostgres}},
			want: "postgres_dsn",
		},
		{
			name: "negative words per second",
			cfg:  Config{Sync: SyncConfig{WordsPerSecond: -1}},
			want: "words_per_second",
		},
		{
			name: "fallback without name",
			cfg:  Config{Providers: ProvidersConfig{Fallbacks: []ProviderEntry{{}}}},
			want: "fallbacks[0].name",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(&tc.cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate_EmptyConfigOK(t *testing.T) {
	if err := Validate(&Config{}); err != nil {
		t.Errorf("empty config should validate, got %v", err)
	}
}

func TestRegistry_CreateASR(t *testing.T) {
	r := NewRegistry()
	r.RegisterASR("mock", func(entry ProviderEntry) (asr.Provider, error) {
		return &asrmock.Provider{}, nil
	})

	p, err := r.CreateASR(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateASR: %v", err)
	}
	if p == nil {
		t.Fatal("CreateASR returned nil provider")
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.CreateASR(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}
