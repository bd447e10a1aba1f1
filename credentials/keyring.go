// Package credentials resolves adapter authentication secrets from the
// OS keyring, environment variables, or a configured URL, in that
// priority order.
//
// Grounded on the teacher's internal/credentials (keyring.go, env.go,
// resolver.go), generalized from "backend name" to "adapter name" since
// an engine instance may sync against several distinct remotes.
package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringServicePrefix namespaces every keyring entry the engine writes.
const KeyringServicePrefix = "dync"

func serviceName(adapterName string) string {
	return fmt.Sprintf("%s-%s", KeyringServicePrefix, adapterName)
}

// SetKeyring stores a password in the OS keyring for adapterName/username.
func SetKeyring(adapterName, username, password string) error {
	if adapterName == "" {
		return errors.New("credentials: adapter name cannot be empty")
	}
	if username == "" {
		return errors.New("credentials: username cannot be empty")
	}
	if password == "" {
		return errors.New("credentials: password cannot be empty")
	}
	if err := keyring.Set(serviceName(adapterName), username, password); err != nil {
		return fmt.Errorf("credentials: store in keyring: %w", err)
	}
	return nil
}

// GetKeyring retrieves a password from the OS keyring.
func GetKeyring(adapterName, username string) (string, error) {
	if adapterName == "" || username == "" {
		return "", errors.New("credentials: adapter name and username are required")
	}
	password, err := keyring.Get(serviceName(adapterName), username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("credentials: no keyring entry for adapter %q user %q", adapterName, username)
		}
		return "", fmt.Errorf("credentials: retrieve from keyring: %w", err)
	}
	return password, nil
}

// DeleteKeyring removes a keyring entry.
func DeleteKeyring(adapterName, username string) error {
	if adapterName == "" || username == "" {
		return errors.New("credentials: adapter name and username are required")
	}
	if err := keyring.Delete(serviceName(adapterName), username); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("credentials: no keyring entry for adapter %q user %q", adapterName, username)
		}
		return fmt.Errorf("credentials: delete from keyring: %w", err)
	}
	return nil
}

// KeyringAvailable probes whether the OS keyring backend is reachable at
// all, so callers can skip straight to env/URL resolution in headless
// environments (containers, CI) without keyring returning a useless
// intermittent failure on every attempt.
func KeyringAvailable() bool {
	_, err := keyring.Get("dync-keyring-probe", "probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
