package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voicerec/internal/config"
	"github.com/MrWong99/voicerec/internal/observe"
	"github.com/MrWong99/voicerec/internal/resilience"
	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
)

// errRecognizerPanic marks a recognizer call that panicked.
var errRecognizerPanic = errors.New("recognition: recognizer panicked")

// errClosed is reported by calls made after [Dispatcher.Close].
var errClosed = errors.New("recognition: dispatcher closed")

// Option is a functional option for [New].
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithSelector replaces the random selection policy.
func WithSelector(s Selector) Option {
	return func(d *Dispatcher) { d.selector = s }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer sets the tracer. Default: [observe.Tracer].
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// slot holds the lazily built recognizer of one provider.
type slot struct {
	mu sync.Mutex
	r  *resilience.GuardedRecognizer
}

// Dispatcher routes audio to one speech-to-text provider and reduces every
// outcome to text or no result.
//
// Recognizers are built from the registry on first use and cached; each is
// wrapped in its own circuit breaker. All methods are safe for concurrent
// use.
type Dispatcher struct {
	cfg      config.RecognitionConfig
	reg      *config.Registry
	log      *slog.Logger
	selector Selector
	metrics  *observe.Metrics
	tracer   trace.Tracer

	mu     sync.Mutex
	slots  map[Provider]*slot
	closed bool
}

// New creates a Dispatcher. cfg is copied and never modified; reg supplies
// the recognizer factories keyed by provider name.
func New(cfg config.RecognitionConfig, reg *config.Registry, opts ...Option) *Dispatcher {
	if reg == nil {
		reg = config.NewRegistry()
	}
	d := &Dispatcher{
		cfg:   cfg,
		reg:   reg,
		slots: make(map[Provider]*slot, len(all)),
	}
	for _, o := range opts {
		o(d)
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.selector == nil {
		d.selector = RandomSelector(nil)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	if d.tracer == nil {
		d.tracer = observe.Tracer()
	}
	return d
}

// Transcribe decodes sample and transcribes it with provider. An empty,
// "random" or unknown provider selects one at random among the credentialed
// providers, never the local offline engine.
func (d *Dispatcher) Transcribe(ctx context.Context, sample []byte, provider string) (string, bool) {
	clip, err := audio.Load(sample)
	if err != nil {
		observe.WithTrace(ctx, d.log).Error("could not decode audio sample", "bytes", len(sample), "err", err)
		return "", false
	}
	return d.TranscribeClip(ctx, clip, provider)
}

// TranscribeClip is [Dispatcher.Transcribe] for already decoded audio.
func (d *Dispatcher) TranscribeClip(ctx context.Context, clip *audio.Clip, provider string) (string, bool) {
	ctx, span := d.tracer.Start(ctx, "recognition.Transcribe")
	defer span.End()

	p, ok := Parse(provider)
	if !ok {
		if provider != "" && provider != config.ActiveRandom {
			observe.WithTrace(ctx, d.log).Warn("unknown voice recognition provider, selecting one at random", "provider", provider)
		}
		if p, ok = d.choose(ctx); !ok {
			span.SetStatus(codes.Error, ErrNoProviderConfigured.Error())
			return "", false
		}
	}
	return d.Invoke(ctx, p, clip)
}

// choose applies the selection policy to the credentialed providers.
func (d *Dispatcher) choose(ctx context.Context) (Provider, bool) {
	candidates := Candidates(d.cfg.Credentials)
	if len(candidates) == 0 {
		observe.WithTrace(ctx, d.log).Error("no available voice recognition provider", "err", ErrNoProviderConfigured)
		return "", false
	}
	p := d.selector(candidates)
	d.metrics.RecordSelection(ctx, string(p))
	observe.WithTrace(ctx, d.log).Debug("selected voice recognition provider", "provider", string(p), "candidates", len(candidates))
	return p, true
}

// Invoke calls provider p exactly once. Providers lacking required
// credentials are never built or called.
func (d *Dispatcher) Invoke(ctx context.Context, p Provider, clip *audio.Clip) (string, bool) {
	ctx, span := d.tracer.Start(ctx, "recognition.Invoke",
		trace.WithAttributes(attribute.String("provider", string(p))))
	defer span.End()
	log := observe.WithTrace(ctx, d.log).With("provider", string(p))

	if missing := Missing(d.cfg.Credentials, p); len(missing) > 0 {
		err := &MissingCredentialsError{Provider: p, Fields: missing}
		log.Error("missing credentials for voice recognition provider", "missing", missing, "err", err)
		d.metrics.RecordRecognition(ctx, string(p), observe.OutcomeUnavailable, 0)
		span.SetStatus(codes.Error, err.Error())
		return "", false
	}

	r, err := d.recognizer(p)
	if err != nil {
		log.Error("could not initialise voice recognition provider", "err", err)
		d.metrics.RecordProviderError(ctx, string(p), "setup")
		d.metrics.RecordRecognition(ctx, string(p), observe.OutcomeUnavailable, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", false
	}

	start := time.Now()
	text, err := r.Recognize(ctx, clip)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil && strings.TrimSpace(text) != "":
		log.Info(p.DisplayName()+" recognition results", "text", text)
		d.metrics.RecordRecognition(ctx, string(p), observe.OutcomeRecognized, elapsed)
		span.SetAttributes(attribute.String("outcome", observe.OutcomeRecognized))
		return text, true

	case err == nil, errors.Is(err, stt.ErrUnknownValue):
		log.Error(p.DisplayName() + " could not understand audio")
		d.metrics.RecordRecognition(ctx, string(p), observe.OutcomeUnrecognized, elapsed)
		span.SetAttributes(attribute.String("outcome", observe.OutcomeUnrecognized))
		return "", false

	default:
		log.Error("could not request results from "+p.DisplayName(), "err", err)
		kind := "request"
		if errors.Is(err, errRecognizerPanic) {
			kind = "panic"
		}
		d.metrics.RecordProviderError(ctx, string(p), kind)
		d.metrics.RecordRecognition(ctx, string(p), observe.OutcomeError, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", false
	}
}

// recognizer returns the cached recognizer of p, building it on first use.
// A failed build is not cached.
func (d *Dispatcher) recognizer(p Provider) (*resilience.GuardedRecognizer, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errClosed
	}
	s, ok := d.slots[p]
	if !ok {
		s = &slot{}
		d.slots[p] = s
	}
	d.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.r != nil {
		return s.r, nil
	}
	inner, err := d.reg.CreateSTT(string(p), d.cfg)
	if err != nil {
		return nil, fmt.Errorf("recognition: build %s: %w", p, err)
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		if c, ok := inner.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, errClosed
	}
	cb := d.cfg.CircuitBreaker
	s.r = resilience.Guard(string(p), &recovering{provider: p, inner: inner}, resilience.CircuitBreakerConfig{
		Disabled:     cb.Disabled,
		MaxFailures:  cb.MaxFailures,
		ResetTimeout: cb.ResetTimeout,
		HalfOpenMax:  cb.HalfOpenMax,
		Logger:       d.log,
		OnStateChange: func(name string, _, to resilience.State) {
			d.metrics.RecordBreakerTransition(context.Background(), name, to.String())
		},
	})
	return s.r, nil
}

// Close releases every built recognizer. Later calls yield no result.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	slots := d.slots
	d.slots = make(map[Provider]*slot)
	d.mu.Unlock()

	var errs []error
	for p, s := range slots {
		s.mu.Lock()
		if s.r != nil {
			if err := s.r.Close(); err != nil {
				errs = append(errs, fmt.Errorf("recognition: close %s: %w", p, err))
			}
			s.r = nil
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

// recovering converts a recognizer panic into a request error.
type recovering struct {
	provider Provider
	inner    stt.Recognizer
}

func (r *recovering) Recognize(ctx context.Context, clip *audio.Clip) (text string, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = stt.NewRequestError(string(r.provider), 0, fmt.Errorf("%w: %v", errRecognizerPanic, v))
		}
	}()
	return r.inner.Recognize(ctx, clip)
}

func (r *recovering) Close() error {
	if c, ok := r.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
