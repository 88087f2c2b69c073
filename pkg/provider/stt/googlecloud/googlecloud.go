// Package googlecloud provides the google-cloud stt.Recognizer backed by the
// Google Cloud Speech-to-Text v1 API.
//
// The client authenticates with a service account key supplied as a JSON
// document. Audio is sent inline as LINEAR16 in a single synchronous
// Recognize call, which Google limits to roughly one minute of audio.
package googlecloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/MrWong99/voicerec/pkg/audio"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"
)

const (
	// Name identifies this backend in errors.
	Name = "google-cloud"

	defaultLanguage = "en-US"

	// Sample rates accepted for LINEAR16.
	minSampleRate = 8000
	maxSampleRate = 48000
)

// Client is the subset of *speech.Client used by Recognizer.
type Client interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// ClientFactory builds a Client from client options.
type ClientFactory func(ctx context.Context, opts ...option.ClientOption) (Client, error)

// NewSpeechClient is the default ClientFactory.
func NewSpeechClient(ctx context.Context, opts ...option.ClientOption) (Client, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)

// Recognizer implements stt.Recognizer for Google Cloud Speech. It is safe
// for concurrent use.
type Recognizer struct {
	client   Client
	language string
	phrases  []string
}

type settings struct {
	language   string
	phrases    []string
	endpoint   string
	newClient  ClientFactory
	clientOpts []option.ClientOption
}

// Option is a functional option for Recognizer.
type Option func(*settings)

// WithLanguage sets the BCP-47 language code. Defaults to "en-US".
func WithLanguage(lang string) Option {
	return func(s *settings) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithPhraseHints biases recognition towards the given phrases.
func WithPhraseHints(phrases ...string) Option {
	return func(s *settings) { s.phrases = append(s.phrases, phrases...) }
}

// WithEndpoint overrides the API endpoint (e.g. a regional endpoint).
func WithEndpoint(endpoint string) Option {
	return func(s *settings) { s.endpoint = endpoint }
}

// WithClientFactory replaces the function used to build the API client.
// Used by tests.
func WithClientFactory(f ClientFactory) Option {
	return func(s *settings) { s.newClient = f }
}

// WithClientOptions appends raw client options.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) { s.clientOpts = append(s.clientOpts, opts...) }
}

// New creates a Recognizer authenticated with the given service account JSON.
// The caller must call Close when the recognizer is no longer needed.
func New(ctx context.Context, credentialsJSON string, opts ...Option) (*Recognizer, error) {
	if strings.TrimSpace(credentialsJSON) == "" {
		return nil, errors.New("googlecloud: credentialsJSON must not be empty")
	}
	if !json.Valid([]byte(credentialsJSON)) {
		return nil, errors.New("googlecloud: credentialsJSON is not valid JSON")
	}

	s := &settings{language: defaultLanguage, newClient: NewSpeechClient}
	for _, o := range opts {
		o(s)
	}

	clientOpts := append([]option.ClientOption{option.WithCredentialsJSON([]byte(credentialsJSON))}, s.clientOpts...)
	if s.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(s.endpoint))
	}
	client, err := s.newClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("googlecloud: create client: %w", err)
	}
	return &Recognizer{client: client, language: s.language, phrases: s.phrases}, nil
}

// Close releases the underlying gRPC connection.
func (r *Recognizer) Close() error {
	return r.client.Close()
}

// Recognize sends clip inline and returns the concatenated top alternatives.
func (r *Recognizer) Recognize(ctx context.Context, clip *audio.Clip) (string, error) {
	rate := min(max(clip.SampleRate, minSampleRate), maxSampleRate)
	c := clip.Convert(audio.Format{SampleRate: rate, Channels: 1})

	cfg := &speechpb.RecognitionConfig{
		Encoding:          speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:   int32(c.SampleRate),
		AudioChannelCount: 1,
		LanguageCode:      r.language,
	}
	if len(r.phrases) > 0 {
		cfg.SpeechContexts = []*speechpb.SpeechContext{{Phrases: r.phrases}}
	}

	resp, err := r.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: c.PCM}},
	})
	if err != nil {
		return "", stt.NewRequestError(Name, 0, fmt.Errorf("recognize (%s): %w", status.Code(err), err))
	}

	var parts []string
	for _, res := range resp.GetResults() {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", stt.ErrUnknownValue
	}
	return strings.Join(parts, " "), nil
}
