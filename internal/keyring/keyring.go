// Package keyring stores the gateway auth token in the OS keychain, with
// an environment variable override for headless environments.
package keyring

import (
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const (
	serviceName = "marketwire"
	accountName = "gateway-token"

	// EnvToken overrides the keychain when set.
	EnvToken = "MARKETWIRE_TOKEN"
)

// GetToken retrieves the gateway token. The MARKETWIRE_TOKEN environment
// variable wins over the keychain.
func GetToken() (string, error) {
	if tok := os.Getenv(EnvToken); tok != "" {
		return tok, nil
	}
	tok, err := zkr.Get(serviceName, accountName)
	if err != nil {
		return "", fmt.Errorf("keychain get: %w", err)
	}
	return tok, nil
}

// SetToken stores the gateway token in the OS keychain.
func SetToken(token string) error {
	return zkr.Set(serviceName, accountName, token)
}

// DeleteToken removes the gateway token from the OS keychain.
func DeleteToken() error {
	return zkr.Delete(serviceName, accountName)
}

// Available returns true if the OS keychain is functional.
// Returns false if MARKETWIRE_KEYRING_DISABLED=1 is set (headless/CI/Docker).
// Otherwise probes the keychain with a test write/delete cycle.
func Available() bool {
	if os.Getenv("MARKETWIRE_KEYRING_DISABLED") == "1" {
		return false
	}
	testService := "marketwire-keyring-probe"
	testAccount := "probe"
	if err := zkr.Set(testService, testAccount, "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(testService, testAccount)
	return true
}
