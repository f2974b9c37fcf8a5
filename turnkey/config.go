package turnkey

import (
	"fmt"
	"net/url"
)

// DefaultBaseURL is the public Turnkey API endpoint.
const DefaultBaseURL = "https://api.turnkey.com"

// Config represents required information to create a Turnkey signer.
type Config struct {
	// APIPublicKey is the hex-encoded compressed P-256 public key of the API key.
	APIPublicKey string `json:"APIPublicKey" mapstructure:"api_public_key"`

	// APIPrivateKey is the hex-encoded P-256 private key of the API key.
	APIPrivateKey string `json:"APIPrivateKey" mapstructure:"api_private_key"`

	// BaseURL is the Turnkey API endpoint. DefaultBaseURL is used when empty.
	BaseURL string `json:"BaseURL,omitempty" mapstructure:"base_url"`

	// OrganizationID is the id of the Turnkey organization owning the key.
	OrganizationID string `json:"OrganizationID" mapstructure:"organization_id"`

	// PrivateKeyID is the id of the signing key held by Turnkey.
	PrivateKeyID string `json:"PrivateKeyID" mapstructure:"private_key_id"`
}

// IsValid checks if a Config is valid.
func (cfg Config) IsValid() (bool, error) {
	if cfg.APIPublicKey == "" {
		return false, fmt.Errorf("empty APIPublicKey")
	}

	if cfg.APIPrivateKey == "" {
		return false, fmt.Errorf("empty APIPrivateKey")
	}

	if cfg.OrganizationID == "" {
		return false, fmt.Errorf("empty OrganizationID")
	}

	if cfg.PrivateKeyID == "" {
		return false, fmt.Errorf("empty PrivateKeyID")
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false, fmt.Errorf("invalid BaseURL %q", cfg.BaseURL)
		}
	}

	return true, nil
}

func (cfg Config) baseURL() string {
	if cfg.BaseURL == "" {
		return DefaultBaseURL
	}

	return cfg.BaseURL
}
