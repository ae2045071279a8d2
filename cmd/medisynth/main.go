// Command medisynth is the main entry point for the MediSynth SOAP note server.
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

	"golang.org/x/sync/errgroup"

	"github.com/medisynth-ai/medisynth/internal/config"
	"github.com/medisynth-ai/medisynth/internal/extract"
	"github.com/medisynth-ai/medisynth/internal/health"
	"github.com/medisynth-ai/medisynth/internal/httpapi"
	"github.com/medisynth-ai/medisynth/internal/observe"
	"github.com/medisynth-ai/medisynth/internal/pipeline"
	"github.com/medisynth-ai/medisynth/pkg/provider/stt"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "medisynth: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "medisynth: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so configuration reloads can adjust it
	// without replacing the handler.
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.Level())
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	if cfg.Server.LogFormat == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("medisynth starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "medisynth",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Pipeline and providers ────────────────────────────────────────────────
	reg := config.DefaultRegistry()

	gen, err := buildGenerator(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	transcriber, err := buildTranscriber(cfg, reg)
	if err != nil {
		slog.Error("failed to build transcription provider", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	checkers := []health.Checker{health.PipelineChecker(gen)}
	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.BaseURL != "" {
		checkers = append(checkers, health.HTTPChecker("whisper", cfg.Providers.STT.BaseURL, nil))
	}

	srv := httpapi.New(gen,
		httpapi.WithTranscriber(transcriber),
		httpapi.WithMetrics(metrics),
		httpapi.WithHealth(health.New(checkers...)),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(config.Diff(old, new), new, reg, metrics, srv, logLevel)
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	printStartupSummary(cfg)

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if cfg.Server.TLS != nil {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining requests")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	slog.Info("server ready", "listen_addr", cfg.Server.ListenAddr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Pipeline wiring ───────────────────────────────────────────────────────────

// buildGenerator assembles the extraction stack and the note pipeline from
// cfg. The pattern extractor is always present; a model extractor is layered
// on top when an NER provider is configured.
func buildGenerator(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*pipeline.Generator, error) {
	var patOpts []extract.PatternOption
	if cfg.Pipeline.LexiconPath != "" {
		lex, err := extract.LoadLexiconFile(cfg.Pipeline.LexiconPath)
		if err != nil {
			return nil, fmt.Errorf("load lexicon %q: %w", cfg.Pipeline.LexiconPath, err)
		}
		patOpts = append(patOpts, extract.WithLexicon(lex))
		slog.Info("lexicon loaded", "path", cfg.Pipeline.LexiconPath)
	}
	if cfg.Pipeline.FuzzyThreshold > 0 {
		patOpts = append(patOpts, extract.WithFuzzyThreshold(cfg.Pipeline.FuzzyThreshold))
	}

	pat, err := extract.NewPattern(patOpts...)
	if err != nil {
		return nil, fmt.Errorf("build pattern extractor: %w", err)
	}

	var model extract.Extractor
	if name := cfg.Providers.NER.Name; name != "" {
		provider, err := reg.CreateNER(cfg.Providers.NER)
		if err != nil {
			return nil, fmt.Errorf("create ner provider %q: %w", name, err)
		}
		var modelOpts []extract.ModelOption
		if cfg.Pipeline.ModelTimeout > 0 {
			modelOpts = append(modelOpts, extract.WithModelTimeout(time.Duration(cfg.Pipeline.ModelTimeout)))
		}
		model = extract.NewModel(provider, modelOpts...)
		slog.Info("provider created", "kind", "ner", "name", name, "model", cfg.Providers.NER.Model)
	}

	composite := extract.NewComposite(model, pat, extract.WithMetrics(metrics))
	return pipeline.New(composite, pipeline.WithMetrics(metrics)), nil
}

// buildTranscriber creates the optional STT provider. A nil return with nil
// error means audio transcription is disabled.
func buildTranscriber(cfg *config.Config, reg *config.Registry) (stt.Provider, error) {
	name := cfg.Providers.STT.Name
	if name == "" {
		return nil, nil
	}
	p, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", name, "model", cfg.Providers.STT.Model)
	return p, nil
}

// applyConfigChange reacts to a reloaded configuration. Pipeline and provider
// changes swap the running components; address and TLS changes need a restart
// and are only logged.
func applyConfigChange(diff config.ConfigDiff, cfg *config.Config, reg *config.Registry, metrics *observe.Metrics, srv *httpapi.Server, logLevel *slog.LevelVar) {
	if diff.Empty() {
		return
	}

	if diff.LogLevelChanged {
		logLevel.Set(diff.NewLogLevel.Level())
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}

	if diff.PipelineChanged || diff.ProvidersChanged {
		gen, err := buildGenerator(cfg, reg, metrics)
		if err != nil {
			slog.Error("config reload: failed to rebuild pipeline; keeping previous", "err", err)
		} else {
			srv.SwapGenerator(gen)
			slog.Info("pipeline rebuilt from updated config")
		}
	}

	if diff.ProvidersChanged {
		transcriber, err := buildTranscriber(cfg, reg)
		if err != nil {
			slog.Error("config reload: failed to rebuild stt provider; keeping previous", "err", err)
		} else {
			srv.SwapTranscriber(transcriber)
			slog.Info("transcription provider updated from config")
		}
	}

	if diff.RestartRequired {
		slog.Warn("config reload: listen address or TLS changed; restart required to apply")
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        MediSynth startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("NER", cfg.Providers.NER.Name, cfg.Providers.NER.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	if cfg.Pipeline.LexiconPath != "" {
		fmt.Printf("║  Lexicon      : %-22s ║\n", trim(cfg.Pipeline.LexiconPath, 22))
	} else {
		fmt.Printf("║  Lexicon      : %-22s ║\n", "(built-in)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr  : %-22s ║\n", cfg.Server.ListenAddr)
	}
	if cfg.Server.TLS != nil {
		fmt.Printf("║  TLS          : %-22s ║\n", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(pattern-only)"
		if kind == "STT" {
			value = "(disabled)"
		}
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s : %-22s ║\n", kind, trim(value, 22))
}

func trim(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
