// Command readsync is the narration-to-text synchronization server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eliasvob/readsync/internal/align"
	"github.com/eliasvob/readsync/internal/audiometa"
	"github.com/eliasvob/readsync/internal/config"
	"github.com/eliasvob/readsync/internal/health"
	"github.com/eliasvob/readsync/internal/observe"
	"github.com/eliasvob/readsync/internal/offset"
	"github.com/eliasvob/readsync/internal/orchestrator"
	"github.com/eliasvob/readsync/internal/resilience"
	"github.com/eliasvob/readsync/internal/server"
	"github.com/eliasvob/readsync/internal/synth"
	"github.com/eliasvob/readsync/internal/timingcache"
	"github.com/eliasvob/readsync/pkg/provider/asr"
	oaiasr "github.com/eliasvob/readsync/pkg/provider/asr/openai"
	"github.com/eliasvob/readsync/pkg/provider/asr/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "readsync: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "readsync: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("readsync starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers (Prometheus-backed metrics, tracing).
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "readsync"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := buildProvider(cfg, reg)
	if err != nil {
		slog.Error("failed to build ASR provider", "err", err)
		return 1
	}

	cache, checkers, err := buildCache(ctx, cfg)
	if err != nil {
		slog.Error("failed to open timing cache", "err", err)
		return 1
	}

	offsets, err := buildOffsets(cfg)
	if err != nil {
		slog.Error("failed to open offset store", "err", err)
		return 1
	}

	orch := orchestrator.New(provider, cache, orchestratorOptions(cfg)...)

	srvOpts := []server.Option{server.WithHealthCheckers(checkers...)}
	if cfg.Sync.PollIntervalMs > 0 {
		srvOpts = append(srvOpts, server.WithPollInterval(time.Duration(cfg.Sync.PollIntervalMs)*time.Millisecond))
	}
	srv := server.New(orch, offsets, srvOpts...)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// registerBuiltinProviders wires the ASR factories that ship with readsync.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterASR("openai", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []oaiasr.Option
		if entry.Model != "" {
			opts = append(opts, oaiasr.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oaiasr.WithBaseURL(entry.BaseURL))
		}
		return oaiasr.New(entry.APIKey, opts...)
	})

	reg.RegisterASR("whisper", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterASR("whisper-native", func(entry config.ProviderEntry) (asr.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})
}

// buildProvider instantiates the primary ASR provider and wraps it with the
// configured fallbacks, each behind its own circuit breaker.
func buildProvider(cfg *config.Config, reg *config.Registry) (asr.Provider, error) {
	if cfg.Providers.ASR.Name == "" {
		return nil, errors.New("providers.asr is not configured")
	}
	primary, err := reg.CreateASR(cfg.Providers.ASR)
	if err != nil {
		return nil, err
	}
	if len(cfg.Providers.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewASRFallback(primary, cfg.Providers.ASR.Name, resilience.ChainConfig{})
	for _, entry := range cfg.Providers.Fallbacks {
		p, err := reg.CreateASR(entry)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", entry.Name, err)
		}
		chain.AddFallback(entry.Name, p)
	}
	return chain, nil
}

// buildCache opens the configured timing cache backend and returns readiness
// checkers for it.
func buildCache(ctx context.Context, cfg *config.Config) (timingcache.Store, []health.Checker, error) {
	switch cfg.Cache.Backend {
	case config.CachePostgres:
		pg, err := timingcache.NewPGStore(ctx, cfg.Cache.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, []health.Checker{{Name: "timing_cache", Check: pg.Ping}}, nil
	case config.CacheFile:
		fs, err := timingcache.NewFileStore(cfg.Cache.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	default:
		return timingcache.NewMemStore(), nil, nil
	}
}

// buildOffsets opens the playback offset store.
func buildOffsets(cfg *config.Config) (offset.Store, error) {
	if cfg.Offsets.Path == "" {
		return offset.NewMemStore(), nil
	}
	return offset.NewFileStore(cfg.Offsets.Path)
}

// orchestratorOptions translates sync and audio tuning into orchestrator
// options.
func orchestratorOptions(cfg *config.Config) []orchestrator.Option {
	var opts []orchestrator.Option
	if cfg.Sync.WordsPerSecond > 0 {
		opts = append(opts, orchestrator.WithSynthesizer(
			synth.New(synth.WithWordsPerSecond(cfg.Sync.WordsPerSecond))))
	}
	var alignOpts []align.Option
	if cfg.Sync.Lookahead > 0 {
		alignOpts = append(alignOpts, align.WithLookahead(cfg.Sync.Lookahead))
	}
	if cfg.Sync.Phonetic {
		alignOpts = append(alignOpts, align.WithMatchers(
			align.ExactMatcher{},
			align.NormalizedMatcher{},
			align.NewPhoneticMatcher(),
		))
	}
	if len(alignOpts) > 0 {
		opts = append(opts, orchestrator.WithAligner(align.New(alignOpts...)))
	}

	var fetchOpts []audiometa.Option
	if cfg.Audio.MaxFetchBytes > 0 {
		fetchOpts = append(fetchOpts, audiometa.WithMaxBytes(cfg.Audio.MaxFetchBytes))
	}
	if cfg.Audio.FetchTimeoutMs > 0 {
		fetchOpts = append(fetchOpts, audiometa.WithTimeout(time.Duration(cfg.Audio.FetchTimeoutMs)*time.Millisecond))
	}
	if len(fetchOpts) > 0 {
		opts = append(opts, orchestrator.WithFetcher(audiometa.NewFetcher(fetchOpts...)))
	}
	return opts
}

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
