package evmsigner

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/LampardNguyen234/evm-signer/awskms"
	"github.com/LampardNguyen234/evm-signer/gcpkms"
	"github.com/LampardNguyen234/evm-signer/provider"
	"github.com/LampardNguyen234/evm-signer/remote"
	"github.com/LampardNguyen234/evm-signer/turnkey"
)

const (
	TypeTurnkey = "turnkey"
	TypeAWS     = "aws"
	TypeGCP     = "gcp"
)

// Config is the holder for the provider and the signing service.
type Config struct {
	// Type indicates which signing service we are using ('turnkey', 'aws', 'gcp').
	Type string `json:"type" mapstructure:"type"`

	// Network is the provider network, e.g. 'goerli' or 'mainnet'.
	Network string `json:"network" mapstructure:"network"`

	// InfuraKey is the Infura project key. The community key is used when empty.
	InfuraKey string `json:"infura_key,omitempty" mapstructure:"infura_key"`

	// RPCURL replaces the Infura endpoint when set.
	RPCURL string `json:"rpc_url,omitempty" mapstructure:"rpc_url"`

	// Turnkey is the detail of the Turnkey signer.
	Turnkey turnkey.Config `json:"turnkey" mapstructure:"turnkey"`

	// Aws is the detail of the AWS KMS signer. Empty credentials fall back to the default AWS
	// credential chain.
	Aws awskms.StaticCredentialsConfig `json:"aws" mapstructure:"aws"`

	// Gcp is the detail of the GCP KMS signer.
	Gcp gcpkms.Config `json:"gcp" mapstructure:"gcp"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"type":                    EnvSignerType,
	"network":                 EnvNetwork,
	"infura_key":              EnvInfuraKey,
	"rpc_url":                 EnvRPCURL,
	"turnkey.api_public_key":  EnvAPIPublicKey,
	"turnkey.api_private_key": EnvAPIPrivateKey,
	"turnkey.base_url":        EnvBaseURL,
	"turnkey.organization_id": EnvOrganizationID,
	"turnkey.private_key_id":  EnvPrivateKeyID,
}

// IsValid checks if the current Config is valid.
func (cfg Config) IsValid() (bool, error) {
	if cfg.RPCURL == "" {
		if _, err := provider.ParseNetwork(cfg.Network); err != nil {
			return false, err
		}
	}

	switch strings.ToLower(cfg.Type) {
	case TypeTurnkey:
		return cfg.Turnkey.IsValid()
	case TypeAWS:
		if !cfg.Aws.HasStaticCredentials() {
			return cfg.Aws.Config.IsValid()
		}
		return cfg.Aws.IsValid()
	case TypeGCP:
		return cfg.Gcp.IsValid()
	}

	return false, fmt.Errorf("signer type `%v` not supported", strings.ToLower(cfg.Type))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("type", TypeTurnkey)
	v.SetDefault("network", string(DefaultNetwork))
	for key, env := range envBindings {
		// BindEnv only fails without a key.
		_ = v.BindEnv(key, env)
	}

	return v
}

// LoadConfigFromFile creates a Config from a json, yaml or toml file. Environment variables
// override values from the file. Like LoadConfigFromEnv, the result is not validated; see
// Config.IsValid.
func LoadConfigFromFile(filePath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config %v", filePath)
	}

	return unmarshal(v)
}

// LoadConfigFromEnv creates a Config from environment variables only. The result is not
// validated, since callers often fill the missing pieces (e.g. the private key id) themselves.
func LoadConfigFromEnv() (*Config, error) {
	return unmarshal(newViper())
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	return &cfg, nil
}

// NewProviderFromConfig creates the provider described by cfg.
func NewProviderFromConfig(ctx context.Context, cfg Config) (*provider.Provider, error) {
	if cfg.RPCURL != "" {
		return provider.Dial(ctx, provider.Network(cfg.Network), cfg.RPCURL)
	}

	network, err := provider.ParseNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}

	return provider.NewInfuraProvider(ctx, network, cfg.InfuraKey)
}

// NewSignerFromConfig creates the signer described by cfg and connects it to p when p is not nil.
func NewSignerFromConfig(ctx context.Context, cfg Config, p *provider.Provider) (*remote.Signer, error) {
	if _, err := cfg.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	var (
		s   *remote.Signer
		err error
	)
	switch strings.ToLower(cfg.Type) {
	case TypeTurnkey:
		s, err = turnkey.NewTurnkeySigner(ctx, cfg.Turnkey, nil)
	case TypeAWS:
		if !cfg.Aws.HasStaticCredentials() {
			s, err = awskms.NewAmazonKMSSignerWithDefaultCredentials(ctx, cfg.Aws.Config, cfg.Aws.Region)
		} else {
			s, err = awskms.NewAmazonKMSSignerWithStaticCredentials(ctx, cfg.Aws)
		}
	case TypeGCP:
		s, err = gcpkms.NewGoogleKMSSigner(ctx, cfg.Gcp)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %v signer", cfg.Type)
	}

	if p == nil {
		return s, nil
	}

	connected, err := s.Connect(ctx, p)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	return connected, nil
}
