// Package evmsigner wires an EVM JSON-RPC provider to a signer whose key is held by a remote custody
// service (Turnkey, AWS KMS or GCP KMS).
package evmsigner

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/LampardNguyen234/evm-signer/provider"
	"github.com/LampardNguyen234/evm-signer/remote"
)

// Signer specifies the required methods for a remote-key signer.
type Signer interface {
	// GetAddress returns the EVM address of the current signer.
	GetAddress() common.Address

	// GetPublicKey returns the EVM public key of the current signer.
	GetPublicKey() (*ecdsa.PublicKey, error)

	// SignHash performs a signing operation for a given digested message.
	SignHash(ctx context.Context, hash common.Hash) ([]byte, error)

	// SignMessage signs an EIP-191 personal message.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)

	// SignTx signs a transaction for the current chain.
	SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)

	// GetDefaultEVMTransactor returns the default remote-backed instance of bind.TransactOpts.
	GetDefaultEVMTransactor(ctx context.Context) *bind.TransactOpts

	// GetEVMSignerFn returns the remote-backed bind.SignerFn instance.
	GetEVMSignerFn(ctx context.Context) bind.SignerFn

	// HasSignedTx checks if the given transaction has been signed by the current signer.
	HasSignedTx(*types.Transaction) (bool, error)

	// WithSigner assigns the given types.Signer to the current signer.
	WithSigner(signer types.Signer)

	// WithChainID switches the current signer to the given chain.
	WithChainID(chainID *big.Int)

	// Connect returns a copy of the signer bound to the given provider.
	Connect(ctx context.Context, p *provider.Provider) (*remote.Signer, error)

	// Provider returns the bound provider, if any.
	Provider() *provider.Provider

	// SendTransaction signs tx and broadcasts it through the bound provider.
	SendTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)

	// Close releases the connection to the signing service.
	Close() error
}

var _ Signer = (*remote.Signer)(nil)
