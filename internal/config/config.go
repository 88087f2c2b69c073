// Package config provides the configuration schema, loader, and recognizer
// registry for the voicerec service.
package config

import "time"

// LogLevel controls log verbosity for the voicerec server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr     = ":8080"
	DefaultLanguage       = "en-US"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxAudioBytes  = 25 << 20
	DefaultServiceName    = "voicerec"

	// ActiveRandom asks for a random credentialed provider.
	ActiveRandom = "random"
)

// Config is the root configuration structure for voicerec.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the voicerec server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON log output.
	LogFormat LogFormat `yaml:"log_format"`

	// MaxAudioBytes caps the size of an inbound audio sample.
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`
}

// RecognitionConfig is everything the transcription dispatcher and the
// recognizer factories need. It is read once at startup and never mutated.
type RecognitionConfig struct {
	// ActiveVoiceRecognition names the provider used for hook records:
	// one of [ValidProviderNames] or "random".
	ActiveVoiceRecognition string `yaml:"active_voice_recognition"`

	// Language is the BCP-47 tag passed to every provider that accepts one.
	Language string `yaml:"language"`

	// RequestTimeout bounds one inbound hook request end to end.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Credentials    Credentials          `yaml:"credentials"`
	Offline        OfflineConfig        `yaml:"offline"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// Endpoints overrides provider base URLs, keyed by provider name
	// (plus "bing-token" for the Bing token endpoint).
	Endpoints map[string]string `yaml:"endpoints"`
}

// Endpoint returns the configured base URL override for key, or "".
func (c RecognitionConfig) Endpoint(key string) string {
	return c.Endpoints[key]
}

// Credentials holds every provider secret. Empty means "not configured".
type Credentials struct {
	GoogleSpeechRecognitionAPIKey    string `yaml:"google_speech_recognition_api_key"`
	GoogleCloudSpeechJSONCredentials string `yaml:"google_cloud_speech_json_credentials"`
	WitAIAPIKey                      string `yaml:"wit_ai_api_key"`
	BingAPIKey                       string `yaml:"bing_api_key"`
	HoundifyClientID                 string `yaml:"houndify_client_id"`
	HoundifyClientKey                string `yaml:"houndify_client_key"`
	IBMSpeechToTextUsername          string `yaml:"ibm_speech_to_text_username"`
	IBMSpeechToTextPassword          string `yaml:"ibm_speech_to_text_password"`
}

// OfflineConfig configures the local whisper.cpp engine.
type OfflineConfig struct {
	// ModelPath is the ggml model file. Empty disables the engine.
	ModelPath string `yaml:"model_path"`

	// Language overrides [RecognitionConfig.Language] for the local engine.
	Language string `yaml:"language"`
}

// CircuitBreakerConfig tunes the per-provider circuit breaker. Zero values
// select the breaker's defaults.
type CircuitBreakerConfig struct {
	// Disabled calls every provider on every request, however often it
	// has failed before.
	Disabled bool `yaml:"disabled"`

	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// TelemetryConfig configures OpenTelemetry resource attributes.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}
