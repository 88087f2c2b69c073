package recognition

import (
	"context"
	"fmt"
	"slices"

	"github.com/MrWong99/voicerec/internal/config"
)

// ProviderStatus describes one provider for health reporting.
type ProviderStatus struct {
	Provider     Provider `json:"provider"`
	Credentialed bool     `json:"credentialed"`
	RandomPool   bool     `json:"random_pool"`
	Registered   bool     `json:"registered"`
	Missing      []string `json:"missing,omitempty"`

	// Breaker is the circuit breaker state, "idle" when the recognizer has
	// not been built yet, or "disabled" when breaking is turned off.
	Breaker string `json:"breaker"`
}

// Status reports every provider in dispatch-table order.
func (d *Dispatcher) Status() []ProviderStatus {
	registered := d.reg.Names()
	pool := Candidates(d.cfg.Credentials)
	out := make([]ProviderStatus, 0, len(all))
	for _, p := range all {
		st := ProviderStatus{
			Provider:     p,
			Credentialed: Credentialed(d.cfg.Credentials, p),
			RandomPool:   slices.Contains(pool, p),
			Registered:   slices.Contains(registered, string(p)),
			Missing:      Missing(d.cfg.Credentials, p),
			Breaker:      "idle",
		}
		d.mu.Lock()
		s := d.slots[p]
		d.mu.Unlock()
		if s != nil {
			s.mu.Lock()
			switch {
			case s.r == nil:
			case s.r.Breaker().Disabled():
				st.Breaker = "disabled"
			default:
				st.Breaker = s.r.Breaker().State().String()
			}
			s.mu.Unlock()
		}
		out = append(out, st)
	}
	return out
}

// Ready reports whether the configured active selection can be served: an
// explicit provider must be registered and have its credentials, random
// selection needs at least one registered candidate.
func (d *Dispatcher) Ready(_ context.Context) error {
	registered := d.reg.Names()
	if p, ok := Parse(d.cfg.ActiveVoiceRecognition); ok {
		if missing := Missing(d.cfg.Credentials, p); len(missing) > 0 {
			return &MissingCredentialsError{Provider: p, Fields: missing}
		}
		if !slices.Contains(registered, string(p)) {
			return fmt.Errorf("%w: %s", config.ErrProviderNotRegistered, p)
		}
		return nil
	}
	for _, p := range Candidates(d.cfg.Credentials) {
		if slices.Contains(registered, string(p)) {
			return nil
		}
	}
	return ErrNoProviderConfigured
}
