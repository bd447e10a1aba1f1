package credentials

import (
	"fmt"
	"net/url"
)

// Source records which of the three priority tiers produced a resolved
// Credentials value.
type Source string

const (
	SourceKeyring Source = "keyring"
	SourceEnv     Source = "env"
	SourceURL     Source = "url"
)

// Credentials is a resolved username/password/host triple for one
// adapter instance.
type Credentials struct {
	Username string
	Password string
	Host     string
	Source   Source
}

// Resolver resolves Credentials for a named adapter instance, trying the
// OS keyring, then environment variables, then a configured URL's
// userinfo, in that order — the same priority the teacher's
// internal/credentials.Resolver uses.
type Resolver struct{}

// NewResolver returns a Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// Resolve looks up credentials for adapterName. username is an optional
// hint used for the keyring lookup (the keyring is keyed by
// adapter+username, not adapter alone); configURL may carry
// fallback host/userinfo.
func (r *Resolver) Resolve(adapterName, username string, configURL *url.URL) (*Credentials, error) {
	if adapterName == "" {
		return nil, fmt.Errorf("credentials: adapter name is required")
	}

	if username != "" && KeyringAvailable() {
		if password, err := GetKeyring(adapterName, username); err == nil {
			return &Credentials{Username: username, Password: password, Host: resolveHost(adapterName, configURL), Source: SourceKeyring}, nil
		}
	}

	if envUser, envPass := EnvUsername(adapterName), EnvPassword(adapterName); envUser != "" && envPass != "" {
		return &Credentials{Username: envUser, Password: envPass, Host: resolveHost(adapterName, configURL), Source: SourceEnv}, nil
	}

	if configURL != nil && configURL.User != nil {
		urlUser := configURL.User.Username()
		urlPass, _ := configURL.User.Password()
		if urlUser != "" && urlPass != "" {
			return &Credentials{Username: urlUser, Password: urlPass, Host: configURL.Host, Source: SourceURL}, nil
		}
	}

	return nil, fmt.Errorf("credentials: no credentials found for adapter %q (tried keyring, environment, url)", adapterName)
}

func resolveHost(adapterName string, configURL *url.URL) string {
	if host := EnvHost(adapterName); host != "" {
		return host
	}
	if configURL != nil {
		return configURL.Host
	}
	return ""
}
