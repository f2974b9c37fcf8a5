// Package remote implements an EVM transaction signer on top of a key that never leaves a remote
// custody service. Backends only fetch the public key and sign digests; everything EVM-specific
// (recovery id, EIP-155 signers, transactors) lives here.
package remote

import (
	"context"
	"crypto/ecdsa"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	kmscommon "github.com/LampardNguyen234/evm-signer/common"
	"github.com/LampardNguyen234/evm-signer/provider"
)

// ErrNotConnected is returned by methods that need a provider when the Signer has none.
var ErrNotConnected = errors.New("signer is not connected to a provider")

// Backend is a remote key holder. A Backend that also implements io.Closer is closed by
// Signer.Close.
type Backend interface {
	// PublicKey fetches the secp256k1 public key of the remote key.
	PublicKey(ctx context.Context) (*ecdsa.PublicKey, error)

	// SignDigest signs a 32-byte digest as is, without hashing it again.
	SignDigest(ctx context.Context, digest common.Hash) (kmscommon.Signature, error)
}

// Signer signs EVM transactions and messages with a Backend.
type Signer struct {
	backend   Backend
	publicKey *ecdsa.PublicKey
	address   common.Address
	signer    types.Signer
	provider  *provider.Provider
}

// NewSigner fetches the backend's public key and creates a Signer.
//
// If txSigner is not provided, the signer will be initiated as types.LatestSignerForChainID(chainID).
// A nil chainID yields a pre-EIP-155 signer until the Signer is connected to a provider.
// Note that only the first value of txSigner is used.
func NewSigner(ctx context.Context, backend Backend, chainID *big.Int, txSigner ...types.Signer) (*Signer, error) {
	pubKey, err := backend.PublicKey(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get public key")
	}

	signer := types.LatestSignerForChainID(chainID)
	if len(txSigner) > 0 {
		signer = txSigner[0]
	}

	return &Signer{
		backend:   backend,
		publicKey: pubKey,
		address:   crypto.PubkeyToAddress(*pubKey),
		signer:    signer,
	}, nil
}

// GetAddress returns the EVM address of the current signer.
func (s *Signer) GetAddress() common.Address {
	return s.address
}

// GetPublicKey returns the public key of the remote key.
func (s *Signer) GetPublicKey() (*ecdsa.PublicKey, error) {
	return s.publicKey, nil
}

// SignHash asks the backend to sign the given digest and returns a 65-byte r || s || v signature,
// with v either 0 or 1.
func (s *Signer) SignHash(ctx context.Context, digest common.Hash) ([]byte, error) {
	sig, err := s.backend.SignDigest(ctx, digest)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign digest")
	}

	return sig.ToEVM(*s.publicKey, digest)
}

// SignMessage signs msg following EIP-191 (personal_sign). The returned v is 27 or 28.
func (s *Signer) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	sig, err := s.SignHash(ctx, common.BytesToHash(accounts.TextHash(msg)))
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}

// SignTx signs tx with the current types.Signer.
func (s *Signer) SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return s.GetEVMSignerFn(ctx)(s.address, tx)
}

// GetDefaultEVMTransactor returns the default remote-backed instance of bind.TransactOpts.
// Only `Context`, `From`, and `Signer` fields are set.
func (s *Signer) GetDefaultEVMTransactor(ctx context.Context) *bind.TransactOpts {
	return &bind.TransactOpts{
		Context: ctx,
		From:    s.address,
		Signer:  s.GetEVMSignerFn(ctx),
	}
}

// GetEVMSignerFn returns a bind.SignerFn backed by the remote key.
func (s *Signer) GetEVMSignerFn(ctx context.Context) bind.SignerFn {
	signer := s.signer
	return func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if addr != s.address {
			return nil, bind.ErrNotAuthorized
		}

		sig, err := s.SignHash(ctx, signer.Hash(tx))
		if err != nil {
			return nil, errors.Wrap(err, "cannot sign transaction")
		}

		ret, err := tx.WithSignature(signer, sig)
		if err != nil {
			return nil, err
		}

		if _, err = s.hasSignedTx(signer, ret); err != nil {
			return nil, err
		}

		return ret, nil
	}
}

// HasSignedTx checks if the given tx is signed by the current Signer.
func (s *Signer) HasSignedTx(tx *types.Transaction) (bool, error) {
	return s.hasSignedTx(s.signer, tx)
}

func (s *Signer) hasSignedTx(signer types.Signer, tx *types.Transaction) (bool, error) {
	from, err := types.Sender(signer, tx)
	if err != nil {
		return false, errors.Wrap(err, "cannot get sender of the tx")
	}

	if from != s.address {
		return false, errors.Errorf("expected signer: %v, got %v", s.address, from)
	}

	return true, nil
}

// WithSigner assigns the given types.Signer.
func (s *Signer) WithSigner(signer types.Signer) {
	s.signer = signer
}

// WithChainID switches to the latest types.Signer for chainID.
func (s *Signer) WithChainID(chainID *big.Int) {
	s.signer = types.LatestSignerForChainID(chainID)
}

// ChainID returns the chain id of the current types.Signer.
func (s *Signer) ChainID() *big.Int {
	return s.signer.ChainID()
}

// Close releases the backend's resources. Connected copies share the backend, so closing one
// closes all of them.
func (s *Signer) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
