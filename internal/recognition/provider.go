// Package recognition implements the transcription dispatcher: it turns an
// audio sample into text by invoking one speech-to-text provider, chosen
// explicitly or at random among the providers that have credentials.
//
// The dispatcher's contract toward callers is total. [Dispatcher.Transcribe]
// returns either non-empty text or "no result"; decoding problems, missing
// credentials, unintelligible audio and provider failures are all logged and
// folded into the no-result case.
package recognition

// Provider identifies a speech-to-text backend. Values match the names used
// in configuration.
type Provider string

const (
	LocalOffline Provider = "local-offline"
	GoogleFree   Provider = "google-free"
	GoogleCloud  Provider = "google-cloud"
	WitAI        Provider = "wit-ai"
	Bing         Provider = "bing"
	Houndify     Provider = "houndify"
	IBM          Provider = "ibm"
)

// all lists every provider in dispatch-table order. It must match
// config.ValidProviderNames; TestAll_MatchesConfigNames checks both.
var all = []Provider{LocalOffline, GoogleFree, GoogleCloud, WitAI, Bing, Houndify, IBM}

// All returns every known provider in dispatch-table order.
func All() []Provider {
	out := make([]Provider, len(all))
	copy(out, all)
	return out
}

// Parse maps a configured name to a [Provider]. ok is false for the empty
// string, "random" and anything unrecognised.
func Parse(name string) (p Provider, ok bool) {
	for _, p := range all {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// String implements fmt.Stringer.
func (p Provider) String() string { return string(p) }

// DisplayName returns the human-readable service name used in log messages.
func (p Provider) DisplayName() string {
	switch p {
	case LocalOffline:
		return "Local offline recognition"
	case GoogleFree:
		return "Google Speech Recognition"
	case GoogleCloud:
		return "Google Cloud Speech"
	case WitAI:
		return "Wit.ai"
	case Bing:
		return "Microsoft Bing Voice Recognition"
	case Houndify:
		return "Houndify"
	case IBM:
		return "IBM Speech to Text"
	default:
		return string(p)
	}
}
