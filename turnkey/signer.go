package turnkey

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	kmscommon "github.com/LampardNguyen234/evm-signer/common"
	"github.com/LampardNguyen234/evm-signer/remote"
)

// backend implements remote.Backend on top of a Turnkey private key.
type backend struct {
	client       *Client
	privateKeyID string
}

var _ remote.Backend = (*backend)(nil)

// NewTurnkeySigner creates a signer for the Turnkey private key cfg.PrivateKeyID.
//
// The returned signer is not bound to any chain: connect it to a provider, or pass txSigner, before
// signing EIP-155 transactions.
//
// Example:
//
//	ctx := context.Background()
//
//	cfg := Config{
//		APIPublicKey:   "API_PUBLIC_KEY",
//		APIPrivateKey:  "API_PRIVATE_KEY",
//		OrganizationID: "ORGANIZATION_ID",
//		PrivateKeyID:   "PRIVATE_KEY_ID",
//	}
//
//	s, err := NewTurnkeySigner(ctx, cfg, nil)
//	if err != nil {
//		panic(err)
//	}
//	s, err = s.Connect(ctx, p)
func NewTurnkeySigner(ctx context.Context, cfg Config, chainID *big.Int, txSigner ...types.Signer) (*remote.Signer, error) {
	return NewTurnkeySignerWithOptions(ctx, cfg, chainID, nil, txSigner...)
}

// NewTurnkeySignerWithOptions is NewTurnkeySigner with custom ClientOptions.
func NewTurnkeySignerWithOptions(ctx context.Context, cfg Config, chainID *big.Int, opts []ClientOption, txSigner ...types.Signer) (*remote.Signer, error) {
	if _, err := cfg.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}

	return remote.NewSigner(ctx, &backend{client: client, privateKeyID: cfg.PrivateKeyID}, chainID, txSigner...)
}

// PublicKey fetches the key from Turnkey and cross-checks the Ethereum address Turnkey reports.
func (b *backend) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	key, err := b.client.GetPrivateKey(ctx, b.privateKeyID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get private key %v", b.privateKeyID)
	}

	if key.Curve != "" && key.Curve != CurveSecp256k1 {
		return nil, errors.Errorf("private key %v uses curve %v, want %v", b.privateKeyID, key.Curve, CurveSecp256k1)
	}

	pubKey, err := kmscommon.ParseHexPublicKey(key.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode public key of %v", b.privateKeyID)
	}

	derived := crypto.PubkeyToAddress(*pubKey)
	for _, addr := range key.Addresses {
		if addr.Format != AddressFormatEthereum {
			continue
		}
		if !common.IsHexAddress(addr.Address) || common.HexToAddress(addr.Address) != derived {
			return nil, errors.Errorf("address mismatch for %v: turnkey reports %v, public key gives %v",
				b.privateKeyID, addr.Address, derived)
		}
	}

	return pubKey, nil
}

// SignDigest signs the digest as is (HASH_FUNCTION_NO_OP).
func (b *backend) SignDigest(ctx context.Context, digest common.Hash) (kmscommon.Signature, error) {
	res, err := b.client.SignRawPayload(ctx, SignRawPayloadParams{
		PrivateKeyID: b.privateKeyID,
		Payload:      hex.EncodeToString(digest[:]),
		Encoding:     PayloadEncodingHexadecimal,
		HashFunction: HashFunctionNoOp,
	})
	if err != nil {
		return kmscommon.Signature{}, err
	}

	return kmscommon.ParseHexSignature(res.R, res.S)
}
