package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/LampardNguyen234/evm-signer/gcpkms"
)

func newAddressCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSigner(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = fmt.Fprintln(cmd.OutOrStdout(), s.GetAddress().Hex())
			return err
		},
	}
}

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the ether balance of the signing key on the configured network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.newSigner(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()
			defer s.Provider().Close()

			balance, err := s.GetBalance(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s ETH\n", s.GetAddress().Hex(), formatEther(balance))
			return err
		},
	}
}

func newSignMessageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "sign-message <text>",
		Short:   "Sign a text message as an EIP-191 personal message",
		Example: `  evmsigner sign-message "hello" --private-key-id 0c9d8e7f-6a5b-4c3d-2e1f-0a9b8c7d6e5f`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSigner(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.Close()

			sig, err := s.SignMessage(cmd.Context(), []byte(args[0]))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(sig))
			return err
		},
	}
}

func newKeyRingsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keyrings",
		Short: "List the Google Cloud KMS key rings of the configured project location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			names, err := gcpkms.ListKeyRings(cmd.Context(), cfg.Gcp)
			if err != nil {
				return errors.Wrap(err, "failed to list key rings")
			}

			for _, name := range names {
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// formatEther renders a wei amount in ether without trailing zeros.
func formatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	return decimal.NewFromBigInt(wei, -18).String()
}
