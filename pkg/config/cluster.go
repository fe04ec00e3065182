package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openlab-infra/ha-healthchecker/pkg/types"
)

// Loader re-reads the cluster-wide Configuration record from the
// coordination store at the start of every tick, decoding the secret
// fields listed in types.Base64EncodedOptions, mirroring
// ClusterConfig._init_options in the source implementation.
type Loader struct {
	store configStore
}

// configStore is the subset of store.Store the loader depends on,
// kept narrow so tests can fake it without pulling in bbolt.
type configStore interface {
	ListConfiguration() (types.Configuration, error)
}

// NewLoader builds a Loader over the given store.
func NewLoader(s configStore) *Loader {
	return &Loader{store: s}
}

// Load reads the configuration and base64-decodes its secret fields.
// A field that is not valid base64 is left as-is — the source
// implementation takes only the first line of the decoded value, so a
// plaintext secret accidentally stored un-encoded must still work
// rather than fail the whole tick.
func (l *Loader) Load() (types.Configuration, error) {
	cfg, err := l.store.ListConfiguration()
	if err != nil {
		return types.Configuration{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	decodeSecrets(&cfg)
	return cfg, nil
}

func decodeSecrets(cfg *types.Configuration) {
	fields := map[string]*string{
		"github_user_password": &cfg.GithubUserPassword,
		"dns_provider_token":    &cfg.DNSProviderToken,
		"github_user_token":     &cfg.GithubUserToken,
	}
	for _, key := range types.Base64EncodedOptions {
		field, ok := fields[key]
		if !ok || *field == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(*field)
		if err != nil {
			continue
		}
		// Only the first line is significant (source implementation
		// convention for secrets that may carry a trailing newline).
		*field = strings.SplitN(string(decoded), "\n", 2)[0]
	}
}
