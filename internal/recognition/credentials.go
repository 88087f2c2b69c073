package recognition

import "github.com/MrWong99/voicerec/internal/config"

// Credentialed reports whether p may take part in random selection.
//
// google-free is asymmetric: it joins the pool only with a configured key,
// yet [Missing] never blocks an explicit call because the public default key
// works without one. local-offline needs no secrets and is always
// credentialed, but [Candidates] never offers it.
func Credentialed(creds config.Credentials, p Provider) bool {
	switch p {
	case LocalOffline:
		return true
	case GoogleFree:
		return creds.GoogleSpeechRecognitionAPIKey != ""
	}
	return len(Missing(creds, p)) == 0
}

// Missing returns the configuration keys p needs but does not have. A nil
// result means the provider may be invoked.
func Missing(creds config.Credentials, p Provider) []string {
	var missing []string
	need := func(value, key string) {
		if value == "" {
			missing = append(missing, key)
		}
	}
	switch p {
	case GoogleCloud:
		need(creds.GoogleCloudSpeechJSONCredentials, "google_cloud_speech_json_credentials")
	case WitAI:
		need(creds.WitAIAPIKey, "wit_ai_api_key")
	case Bing:
		need(creds.BingAPIKey, "bing_api_key")
	case Houndify:
		need(creds.HoundifyClientID, "houndify_client_id")
		need(creds.HoundifyClientKey, "houndify_client_key")
	case IBM:
		need(creds.IBMSpeechToTextUsername, "ibm_speech_to_text_username")
		need(creds.IBMSpeechToTextPassword, "ibm_speech_to_text_password")
	}
	return missing
}

// Candidates returns the random-selection pool: every credentialed provider
// except local-offline, in dispatch-table order.
func Candidates(creds config.Credentials) []Provider {
	var out []Provider
	for _, p := range all {
		if p != LocalOffline && Credentialed(creds, p) {
			out = append(out, p)
		}
	}
	return out
}
