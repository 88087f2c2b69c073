// Package app wires the voicerec subsystems into a running server.
//
// The App struct owns the full lifecycle: New builds the transcription
// dispatcher, the hook transports and the health endpoints, Run serves them
// until the context is cancelled, and Shutdown releases the recognizers.
//
// For testing, inject doubles via functional options (WithTranscriber,
// WithMetrics, ...). When an option is not provided, New builds the real
// implementation from the config and registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicerec/internal/config"
	"github.com/MrWong99/voicerec/internal/health"
	"github.com/MrWong99/voicerec/internal/hook"
	"github.com/MrWong99/voicerec/internal/observe"
	"github.com/MrWong99/voicerec/internal/recognition"
)

// shutdownGrace bounds how long in-flight requests may run after Run's
// context is cancelled.
const shutdownGrace = 15 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config
	reg *config.Registry

	log         *slog.Logger
	metrics     *observe.Metrics
	metricsPage http.Handler

	dispatcher  *recognition.Dispatcher
	transcriber hook.Transcriber
	hook        *hook.Handler
	health      *health.Handler
	handler     http.Handler
	srv         *http.Server

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once

	addrMu sync.Mutex
	addr   net.Addr
	ready  chan struct{}
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger sets the logger passed to every subsystem.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithMetrics sets the metric instruments instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsPage = h }
}

// WithTranscriber replaces the dispatcher behind the hook transports.
func WithTranscriber(t hook.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// New creates an App from cfg. reg supplies the recognizer factories.
func New(cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	a := &App{
		cfg:   cfg,
		reg:   reg,
		ready: make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.dispatcher = recognition.New(cfg.Recognition, reg,
		recognition.WithLogger(a.log),
		recognition.WithMetrics(a.metrics),
	)
	a.closers = append(a.closers, a.dispatcher.Close)
	if a.transcriber == nil {
		a.transcriber = a.dispatcher
	}

	a.hook = hook.New(a.transcriber, cfg.Recognition.ActiveVoiceRecognition,
		hook.WithLogger(a.log),
		hook.WithMetrics(a.metrics),
		hook.WithRequestTimeout(cfg.Recognition.RequestTimeout),
		hook.WithMaxAudioBytes(cfg.Server.MaxAudioBytes),
	)

	a.health = health.New(health.Checker{
		Name:    "recognition",
		Check:   a.dispatcher.Ready,
		Details: func() any { return a.dispatcher.Status() },
	})

	mux := http.NewServeMux()
	a.hook.Register(mux)
	a.health.Register(mux)
	if a.metricsPage != nil {
		mux.Handle("GET /metrics", a.metricsPage)
	}
	a.handler = observe.Middleware(a.metrics, a.log)(mux)
	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.log.Handler(), slog.LevelWarn),
	}

	if err := a.dispatcher.Ready(context.Background()); err != nil {
		a.log.Warn("voice recognition is not ready", "active", cfg.Recognition.ActiveVoiceRecognition, "err", err)
	}
	return a, nil
}

// Dispatcher returns the transcription dispatcher.
func (a *App) Dispatcher() *recognition.Dispatcher { return a.dispatcher }

// Handler returns the root HTTP handler with middleware applied.
func (a *App) Handler() http.Handler { return a.handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on the configured listen address until ctx is cancelled,
// then drains in-flight requests. It returns nil after a clean stop. Run must
// be called at most once.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	a.addrMu.Lock()
	a.addr = ln.Addr()
	a.addrMu.Unlock()
	close(a.ready)
	a.log.Info("listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Addr blocks until Run is listening and returns the bound address.
func (a *App) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	a.addrMu.Lock()
	defer a.addrMu.Unlock()
	return a.addr, nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases all subsystems. It respects the context deadline: if ctx
// expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
