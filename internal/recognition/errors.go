package recognition

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProviderConfigured is logged when random selection finds no
// credentialed provider.
var ErrNoProviderConfigured = errors.New("recognition: no voice recognition provider configured; set API credentials in the configuration")

// MissingCredentialsError is logged when a provider is invoked without the
// secrets it requires.
type MissingCredentialsError struct {
	Provider Provider
	Fields   []string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("recognition: can not use %s without %s", e.Provider.DisplayName(), strings.Join(e.Fields, ", "))
}
