package awskms

import (
	"fmt"
)

// Config represents required information to create an AWS KMS signer.
type Config struct {
	// KeyID is the ID (or ARN, or alias) of the working AWS KMS key.
	KeyID string `json:"KeyID" mapstructure:"key_id"`

	// ChainID is the ID of the target EVM chain. Zero leaves the signer unbound until it is
	// connected to a provider.
	//
	// See https://chainlist.org.
	ChainID uint64 `json:"ChainID" mapstructure:"chain_id"`
}

// IsValid checks if a Config is valid.
func (cfg Config) IsValid() (bool, error) {
	if cfg.KeyID == "" {
		return false, fmt.Errorf("empty KeyID")
	}

	return true, nil
}

// StaticCredentialsConfig is a Config with explicit AWS credentials.
type StaticCredentialsConfig struct {
	Config `mapstructure:",squash"`

	Region          string `json:"Region" mapstructure:"region"`
	AccessKeyID     string `json:"AccessKeyID" mapstructure:"access_key_id"`
	SecretAccessKey string `json:"SecretAccessKey" mapstructure:"secret_access_key"`
	SessionToken    string `json:"SessionToken,omitempty" mapstructure:"session_token"`
}

// IsValid checks if a StaticCredentialsConfig is valid.
func (cfg StaticCredentialsConfig) IsValid() (bool, error) {
	if _, err := cfg.Config.IsValid(); err != nil {
		return false, err
	}

	if cfg.Region == "" {
		return false, fmt.Errorf("empty Region")
	}

	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return false, fmt.Errorf("empty AccessKeyID or SecretAccessKey")
	}

	return true, nil
}

// HasStaticCredentials reports whether any static credential field is set. A config without
// them uses the default AWS credential chain.
func (cfg StaticCredentialsConfig) HasStaticCredentials() bool {
	return cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" || cfg.SessionToken != ""
}
