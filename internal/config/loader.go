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

// ValidProviderNames lists the recognition providers understood by the
// dispatcher, in dispatch-table order. It mirrors the Provider constants of
// package recognition, which imports config; TestAll_MatchesConfigNames in
// that package fails when the two drift apart.
var ValidProviderNames = []string{
	"local-offline",
	"google-free",
	"google-cloud",
	"wit-ai",
	"bing",
	"houndify",
	"ibm",
}

// validEndpointKeys lists the keys accepted under recognition.endpoints.
var validEndpointKeys = append(slices.Clone(ValidProviderNames), "bing-token")

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = LogFormatText
	}
	if cfg.Server.MaxAudioBytes == 0 {
		cfg.Server.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if cfg.Recognition.ActiveVoiceRecognition == "" {
		cfg.Recognition.ActiveVoiceRecognition = ActiveRandom
	}
	if cfg.Recognition.Language == "" {
		cfg.Recognition.Language = DefaultLanguage
	}
	if cfg.Recognition.RequestTimeout == 0 {
		cfg.Recognition.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Values that are legal but probably unintended are logged as warnings.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_audio_bytes must not be negative, got %d", cfg.Server.MaxAudioBytes))
	}

	// Recognition
	rc := cfg.Recognition
	if rc.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("recognition.request_timeout must not be negative, got %s", rc.RequestTimeout))
	}
	cb := rc.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("recognition.circuit_breaker values must not be negative"))
	}
	for key := range rc.Endpoints {
		if !slices.Contains(validEndpointKeys, key) {
			errs = append(errs, fmt.Errorf("recognition.endpoints: unknown key %q; valid keys: %v", key, validEndpointKeys))
		}
	}

	// An unknown active provider is legal: the dispatcher falls back to
	// random selection.
	if name := rc.ActiveVoiceRecognition; name != "" && name != ActiveRandom && !slices.Contains(ValidProviderNames, name) {
		slog.Warn("unknown recognition provider; random selection will be used",
			"name", name,
			"known", ValidProviderNames,
		)
	}

	// Credential pairs configured by halves.
	c := rc.Credentials
	if (c.HoundifyClientID == "") != (c.HoundifyClientKey == "") {
		slog.Warn("houndify needs both houndify_client_id and houndify_client_key; provider disabled")
	}
	if (c.IBMSpeechToTextUsername == "") != (c.IBMSpeechToTextPassword == "") {
		slog.Warn("ibm needs both ibm_speech_to_text_username and ibm_speech_to_text_password; provider disabled")
	}
	if rc.ActiveVoiceRecognition == "local-offline" && rc.Offline.ModelPath == "" {
		slog.Warn("local-offline selected but recognition.offline.model_path is empty; every recognition will fail")
	}

	return errors.Join(errs...)
}
