package remote

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/LampardNguyen234/evm-signer/provider"
)

// Connect returns a copy of the Signer bound to p. The copy signs for p's chain id; the receiver
// is left untouched.
func (s *Signer) Connect(ctx context.Context, p *provider.Provider) (*Signer, error) {
	if p == nil {
		return nil, errors.New("nil provider")
	}

	chainID, err := p.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	connected := *s
	connected.provider = p
	connected.signer = types.LatestSignerForChainID(chainID)

	return &connected, nil
}

// Provider returns the provider the Signer is connected to, or nil.
func (s *Signer) Provider() *provider.Provider {
	return s.provider
}

// SendTransaction signs tx and hands it to the connected provider.
func (s *Signer) SendTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	if s.provider == nil {
		return nil, ErrNotConnected
	}

	signed, err := s.SignTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err = s.provider.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Wrapf(err, "failed to send tx %v", signed.Hash())
	}

	return signed, nil
}

// GetBalance returns the latest balance of the signer's address, in wei.
func (s *Signer) GetBalance(ctx context.Context) (*big.Int, error) {
	if s.provider == nil {
		return nil, ErrNotConnected
	}

	return s.provider.BalanceAt(ctx, s.address, nil)
}

// GetNonce returns the pending nonce of the signer's address.
func (s *Signer) GetNonce(ctx context.Context) (uint64, error) {
	if s.provider == nil {
		return 0, ErrNotConnected
	}

	return s.provider.PendingNonceAt(ctx, s.address)
}
