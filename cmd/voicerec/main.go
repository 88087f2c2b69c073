// Command voicerec serves the voice-recognition hook, or transcribes a single
// audio file with -transcribe.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voicerec/internal/app"
	"github.com/MrWong99/voicerec/internal/config"
	"github.com/MrWong99/voicerec/internal/observe"
	"github.com/MrWong99/voicerec/internal/recognition"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	samplePath := flag.String("transcribe", "", "transcribe this audio file once and exit")
	provider := flag.String("provider", "", "provider for -transcribe (default: recognition.active_voice_recognition)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicerec: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicerec: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(os.Stderr, cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(logger)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	if *samplePath != "" {
		return transcribeOnce(cfg, reg, *samplePath, *provider)
	}

	slog.Info("voicerec starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Registerer:     promReg,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, reg,
		app.WithLogger(logger),
		app.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(os.Stdout, cfg, application.Dispatcher().Status())

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// transcribeOnce runs a single transcription of the file at path and prints
// the text. It exits non-zero when no transcript was produced.
func transcribeOnce(cfg *config.Config, reg *config.Registry, path, provider string) int {
	sample, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voicerec: %v\n", err)
		return 1
	}
	if provider == "" {
		provider = cfg.Recognition.ActiveVoiceRecognition
	}

	d := recognition.New(cfg.Recognition, reg)
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Recognition.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Recognition.RequestTimeout)
		defer cancel()
	}

	text, ok := d.Transcribe(ctx, sample, provider)
	if !ok {
		return 1
	}
	fmt.Println(text)
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config, status []recognition.ProviderStatus) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║           voicerec startup summary            ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  %-14s : %-28s ║\n", "Active", truncate(cfg.Recognition.ActiveVoiceRecognition, 28))
	fmt.Fprintf(w, "║  %-14s : %-28s ║\n", "Language", truncate(cfg.Recognition.Language, 28))
	for _, st := range status {
		fmt.Fprintf(w, "║  %-14s : %-28s ║\n", st.Provider, truncate(providerState(st), 28))
	}
	fmt.Fprintf(w, "║  %-14s : %-28s ║\n", "Listen addr", truncate(cfg.Server.ListenAddr, 28))
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════╝")
}

func providerState(st recognition.ProviderStatus) string {
	switch {
	case !st.Registered:
		return "(not built in)"
	case !st.Credentialed:
		return "missing " + strings.Join(st.Missing, ", ")
	case st.RandomPool:
		return "ready"
	default:
		return "ready (explicit only)"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level config.LogLevel, format config.LogFormat) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
