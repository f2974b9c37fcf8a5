package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	evmsigner "github.com/LampardNguyen234/evm-signer"
	"github.com/LampardNguyen234/evm-signer/provider"
	"github.com/LampardNguyen234/evm-signer/remote"
)

type rootOptions struct {
	configFile   string
	envFile      string
	network      string
	privateKeyID string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "evmsigner",
		Short:         "Sign EVM payloads with a remote custody key",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := configureLogger(cmd, opts.logLevel); err != nil {
				return err
			}

			return evmsigner.LoadEnv(opts.envFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Config file (json, yaml or toml); environment variables are used when empty")
	flags.StringVar(&opts.envFile, "env-file", evmsigner.DefaultEnvFile, "Dotenv file loaded before reading the configuration")
	flags.StringVarP(&opts.network, "network", "n", "", "Network name, overrides the configuration")
	flags.StringVar(&opts.privateKeyID, "private-key-id", "", "Turnkey private key id, overrides the configuration")
	flags.StringVar(&opts.logLevel, "log-level", zerolog.InfoLevel.String(), "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newAddressCmd(opts),
		newBalanceCmd(opts),
		newSignMessageCmd(opts),
		newKeyRingsCmd(opts),
	)

	return cmd
}

func configureLogger(cmd *cobra.Command, level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Str("service", "evmsigner").
		Logger()

	return nil
}

// loadConfig reads the configuration and applies the flag overrides.
func (o *rootOptions) loadConfig() (*evmsigner.Config, error) {
	var (
		cfg *evmsigner.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = evmsigner.LoadConfigFromFile(o.configFile)
	} else {
		cfg, err = evmsigner.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if o.network != "" {
		cfg.Network = o.network
	}
	if o.privateKeyID != "" {
		cfg.Turnkey.PrivateKeyID = o.privateKeyID
	}

	return cfg, nil
}

// newSigner builds the configured signer. The provider is only created when connect is set.
func (o *rootOptions) newSigner(ctx context.Context, connect bool) (*remote.Signer, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	var p *provider.Provider
	if connect {
		if p, err = evmsigner.NewProviderFromConfig(ctx, *cfg); err != nil {
			return nil, err
		}
	}

	s, err := evmsigner.NewSignerFromConfig(ctx, *cfg, p)
	if err != nil {
		if p != nil {
			p.Close()
		}
		return nil, err
	}

	return s, nil
}

func init() {
	// the library default is debug; keep stray output quiet until flags are parsed
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
