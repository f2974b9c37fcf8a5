package common

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	// CurveOrder is the order of the secp256k1 elliptic curve.
	CurveOrder = crypto.S256().Params().N

	// CurveOrderHalf = CurveOrder / 2.
	CurveOrderHalf = new(big.Int).Div(CurveOrder, big.NewInt(2))
)

// Signature represents a raw (r, s) signature returned by a remote signing service.
//
// A Signature has no recovery id. In order for it to be EVM-compatible, it must be converted
// to the (r || s || v) form with ToEVM.
type Signature struct {
	R, S *big.Int
}

// ParseDERSignature decodes an ASN.1 DER `SEQUENCE { r INTEGER, s INTEGER }`, the format
// returned by the AWS and GCP key management services.
func ParseDERSignature(der []byte) (Signature, error) {
	var sig Signature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return Signature{}, errors.Wrap(err, "cannot unmarshal DER signature")
	}
	if len(rest) != 0 {
		return Signature{}, fmt.Errorf("trailing data after DER signature")
	}

	return sig, sig.validate()
}

// ParseHexSignature builds a Signature from hex-encoded r and s values. A leading 0x is optional.
func ParseHexSignature(r, s string) (Signature, error) {
	rBytes, err := hex.DecodeString(strip0x(r))
	if err != nil {
		return Signature{}, errors.Wrap(err, "invalid r")
	}
	sBytes, err := hex.DecodeString(strip0x(s))
	if err != nil {
		return Signature{}, errors.Wrap(err, "invalid s")
	}

	sig := Signature{R: new(big.Int).SetBytes(rBytes), S: new(big.Int).SetBytes(sBytes)}

	return sig, sig.validate()
}

func (sig Signature) validate() error {
	if sig.R == nil || sig.S == nil || sig.R.Sign() <= 0 || sig.S.Sign() <= 0 {
		return fmt.Errorf("signature values must be positive")
	}
	if sig.R.Cmp(CurveOrder) >= 0 || sig.S.Cmp(CurveOrder) >= 0 {
		return fmt.Errorf("signature values exceed the curve order")
	}

	return nil
}

// ToEVM converts the signature into an EVM-compatible signature of the form r || s || v, with v
// either 0 or 1. The `WithSignature` function of a types.Transaction adjusts v based on the
// types.Signer. Reference: https://eips.ethereum.org/EIPS/eip-155.
func (sig Signature) ToEVM(pubKey ecdsa.PublicKey, digest common.Hash) ([]byte, error) {
	if err := sig.validate(); err != nil {
		return nil, err
	}

	// s must not exceed n/2, otherwise the signature is malleable and rejected by the EVM.
	// https://github.com/ethereum/EIPs/blob/master/EIPS/eip-2.md
	s := sig.S
	if s.Cmp(CurveOrderHalf) > 0 {
		s = new(big.Int).Sub(CurveOrder, s)
	}

	pubKeyBytes := crypto.FromECDSAPub(&pubKey)
	rsSig := append(math.PaddedBigBytes(sig.R, 32), math.PaddedBigBytes(s, 32)...)

	if !crypto.VerifySignature(pubKeyBytes, digest[:], rsSig) {
		return nil, fmt.Errorf("failed to verify signature")
	}

	for _, v := range []byte{0, 1} {
		evmSig := append(append([]byte{}, rsSig...), v)
		recovered, err := crypto.Ecrecover(digest[:], evmSig)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to recover pubKey with v = %d", v)
		}
		if bytes.Equal(recovered, pubKeyBytes) {
			return evmSig, nil
		}
	}

	return nil, fmt.Errorf("cannot convert signature")
}

func strip0x(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}
