package common

import (
	"crypto/ecdsa"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// subjectPublicKeyInfo is the X.509 SPKI layout used by cloud KMS services for EC public keys.
type subjectPublicKeyInfo struct {
	Algorithm struct {
		Algorithm  asn1.ObjectIdentifier
		Parameters asn1.ObjectIdentifier
	}
	PublicKey asn1.BitString
}

// ParseSPKIPublicKey parses a DER-encoded SubjectPublicKeyInfo holding a secp256k1 key.
func ParseSPKIPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	var info subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, errors.Wrap(err, "cannot decode public key")
	}
	if len(info.PublicKey.Bytes) == 0 {
		return nil, fmt.Errorf("empty public key")
	}

	pubKey, err := crypto.UnmarshalPubkey(info.PublicKey.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid secp256k1 public key")
	}

	return pubKey, nil
}

// ParsePEMPublicKey parses a PEM "PUBLIC KEY" block holding a secp256k1 key.
func ParsePEMPublicKey(pemKey string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("cannot decode public key %v", pemKey)
	}

	return ParseSPKIPublicKey(block.Bytes)
}

// ParseHexPublicKey parses a hex secp256k1 public key, either compressed (33 bytes) or
// uncompressed (65 bytes).
func ParseHexPublicKey(hexKey string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strip0x(hexKey))
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex public key")
	}

	switch len(raw) {
	case 33:
		return crypto.DecompressPubkey(raw)
	case 65:
		return crypto.UnmarshalPubkey(raw)
	}

	return nil, fmt.Errorf("unexpected public key length %d", len(raw))
}
