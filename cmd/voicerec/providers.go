package main

import (
	"context"
	"log/slog"

	"github.com/MrWong99/voicerec/internal/config"
	"github.com/MrWong99/voicerec/pkg/provider/stt"
	"github.com/MrWong99/voicerec/pkg/provider/stt/bing"
	"github.com/MrWong99/voicerec/pkg/provider/stt/googlecloud"
	"github.com/MrWong99/voicerec/pkg/provider/stt/googleweb"
	"github.com/MrWong99/voicerec/pkg/provider/stt/houndify"
	"github.com/MrWong99/voicerec/pkg/provider/stt/ibm"
	"github.com/MrWong99/voicerec/pkg/provider/stt/whisper"
	"github.com/MrWong99/voicerec/pkg/provider/stt/witai"
)

// registerBuiltinProviders wires the recognizer factories that ship with
// voicerec into reg. Factories run lazily, on the first request for their
// provider, and only after the dispatcher has checked the credentials.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("local-offline", func(rc config.RecognitionConfig) (stt.Recognizer, error) {
		lang := rc.Offline.Language
		if lang == "" {
			lang = rc.Language
		}
		return whisper.NewNative(rc.Offline.ModelPath, whisper.WithNativeLanguage(lang))
	})

	reg.RegisterSTT("google-free", func(rc config.RecognitionConfig) (stt.Recognizer, error) {
		return googleweb.New(rc.Credentials.GoogleSpeechRecognitionAPIKey,
			googleweb.WithLanguage(rc.Language),
			googleweb.WithBaseURL(rc.Endpoint("google-free")),
		)
	})

	reg.RegisterSTT("google-cloud", func(rc config.RecognitionConfig) (stt.Recognizer, error) {
		// The client outlives this call; the context only scopes dialing.
		return googlecloud.New(context.Background(), rc.Credentials.GoogleCloudSpeechJSONCredentials,
			googlecloud.WithLanguage(rc.Language),
			googlecloud.WithEndpoint(rc.Endpoint("google-cloud")),
		)
	})

	reg.RegisterSTT("wit-ai", func(rc config.RecognitionConfig) (stt.Recognizer, error) {
		return witai.New(rc.Credentials.WitAIAPIKey, witai.WithBaseURL(rc.Endpoint("wit-ai")))
	})

	reg.RegisterSTT("bing", func(rc config.RecognitionConfig) (stt.Recognizer, error) {
		return bing.New(rc.Credentials.BingAPIKey,
			bing.WithLanguage(rc.Language),
			bing.WithRecognizeURL(rc.Endpoint("bing")),
			bing.WithTokenURL(rc.Endpoint("bing-token")),
		)
	})

	reg.RegisterSTT("houndify", func(rc config.RecognitionConfig) (stt.Recognizer, error) {
		return houndify.New(rc.Credentials.HoundifyClientID, rc.Credentials.HoundifyClientKey,
			houndify.WithURL(rc.Endpoint("houndify")),
		)
	})

	reg.RegisterSTT("ibm", func(rc config.RecognitionConfig) (stt.Recognizer, error) {
		return ibm.New(rc.Credentials.IBMSpeechToTextUsername, rc.Credentials.IBMSpeechToTextPassword,
			ibm.WithLanguage(rc.Language),
			ibm.WithBaseURL(rc.Endpoint("ibm")),
		)
	})

	for _, name := range reg.Names() {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
}
