package evmsigner

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/subosito/gotenv"

	"github.com/LampardNguyen234/evm-signer/provider"
	"github.com/LampardNguyen234/evm-signer/remote"
	"github.com/LampardNguyen234/evm-signer/turnkey"
)

// Environment variables read by this package.
const (
	EnvInfuraKey      = "INFURA_KEY"
	EnvAPIPublicKey   = "API_PUBLIC_KEY"
	EnvAPIPrivateKey  = "API_PRIVATE_KEY"
	EnvBaseURL        = "BASE_URL"
	EnvOrganizationID = "ORGANIZATION_ID"
	EnvPrivateKeyID   = "PRIVATE_KEY_ID"
	EnvNetwork        = "NETWORK"
	EnvSignerType     = "SIGNER_TYPE"
	EnvRPCURL         = "RPC_URL"
)

// DefaultEnvFile is loaded from the working directory by LoadEnv.
const DefaultEnvFile = ".env.local"

// DefaultNetwork is the network served by GetDefaultProvider.
const DefaultNetwork = provider.Goerli

var (
	providerMtx     sync.Mutex
	defaultProvider *provider.Provider
)

// LoadEnv loads dotenv files into the process environment. Relative paths are resolved against the
// working directory, missing files are skipped, and variables already set are not overridden.
// Without arguments DefaultEnvFile is loaded.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultEnvFile}
	}

	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "failed to get working directory")
	}

	for _, path := range paths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(wd, path)
		}

		if err = gotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debug().Str("component", "evmsigner").Str("path", path).Msg("env file not found, skipping")
				continue
			}
			return errors.Wrapf(err, "failed to load %v", path)
		}
	}

	return nil
}

// GetProvider returns the Infura provider for network, keyed by INFURA_KEY (or the community key).
//
// The last provider handed out is kept as the process-wide default: asking again for the same
// network returns it, asking for another network replaces it.
func GetProvider(ctx context.Context, network provider.Network) (*provider.Provider, error) {
	providerMtx.Lock()
	defer providerMtx.Unlock()

	if defaultProvider != nil && defaultProvider.Network() == network {
		return defaultProvider, nil
	}

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	p, err := provider.NewInfuraProvider(ctx, network, cfg.InfuraKey)
	if err != nil {
		return nil, err
	}
	defaultProvider = p

	return p, nil
}

// GetDefaultProvider is GetProvider for DefaultNetwork.
func GetDefaultProvider(ctx context.Context) (*provider.Provider, error) {
	return GetProvider(ctx, DefaultNetwork)
}

// GetTurnkeySigner returns a Turnkey signer for privateKeyID connected to p. Credentials come from
// API_PUBLIC_KEY, API_PRIVATE_KEY, BASE_URL and ORGANIZATION_ID.
func GetTurnkeySigner(ctx context.Context, p *provider.Provider, privateKeyID string) (*remote.Signer, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	tkCfg := cfg.Turnkey
	tkCfg.PrivateKeyID = privateKeyID

	s, err := turnkey.NewTurnkeySigner(ctx, tkCfg, nil)
	if err != nil {
		return nil, err
	}

	return s.Connect(ctx, p)
}
