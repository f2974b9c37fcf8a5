package turnkey

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const (
	// StampHeader carries the request stamp.
	StampHeader = "X-Stamp"

	// SignatureScheme is the only stamp scheme supported for API keys.
	SignatureScheme = "SIGNATURE_SCHEME_TK_API_P256"
)

// Stamp is the payload of the X-Stamp header, before base64url encoding.
type Stamp struct {
	PublicKey string `json:"publicKey"`
	Scheme    string `json:"scheme"`
	Signature string `json:"signature"`
}

// APIKeyStamper signs request bodies with a Turnkey API key.
type APIKeyStamper struct {
	publicKey  string
	privateKey *ecdsa.PrivateKey
}

// NewAPIKeyStamper parses the hex API key pair and checks that both halves belong together.
func NewAPIKeyStamper(apiPublicKey, apiPrivateKey string) (*APIKeyStamper, error) {
	rawPriv, err := hex.DecodeString(strings.TrimPrefix(apiPrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid API private key")
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(rawPriv)
	if d.Sign() <= 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("API private key out of range")
	}

	priv := &ecdsa.PrivateKey{PublicKey: ecdsa.PublicKey{Curve: curve}, D: d}
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())

	rawPub, err := hex.DecodeString(strings.TrimPrefix(apiPublicKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid API public key")
	}
	derived := elliptic.MarshalCompressed(curve, priv.PublicKey.X, priv.PublicKey.Y)
	if !bytes.Equal(rawPub, derived) {
		return nil, fmt.Errorf("API public key does not match the API private key")
	}

	return &APIKeyStamper{publicKey: hex.EncodeToString(derived), privateKey: priv}, nil
}

// Stamp signs body and returns the X-Stamp header value.
func (s *APIKeyStamper) Stamp(body []byte) (string, error) {
	digest := sha256.Sum256(body)
	sig, err := ecdsa.SignASN1(rand.Reader, s.privateKey, digest[:])
	if err != nil {
		return "", errors.Wrap(err, "failed to sign request")
	}

	stamp, err := json.Marshal(Stamp{
		PublicKey: s.publicKey,
		Scheme:    SignatureScheme,
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(stamp), nil
}

// VerifyStamp checks an X-Stamp header against body. It returns the stamping public key.
func VerifyStamp(header string, body []byte) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(header)
	if err != nil {
		return "", errors.Wrap(err, "invalid stamp encoding")
	}

	var stamp Stamp
	if err = json.Unmarshal(raw, &stamp); err != nil {
		return "", errors.Wrap(err, "invalid stamp")
	}
	if stamp.Scheme != SignatureScheme {
		return "", fmt.Errorf("unsupported stamp scheme %q", stamp.Scheme)
	}

	rawPub, err := hex.DecodeString(stamp.PublicKey)
	if err != nil {
		return "", errors.Wrap(err, "invalid stamp public key")
	}
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), rawPub)
	if x == nil {
		return "", fmt.Errorf("invalid stamp public key")
	}

	sig, err := hex.DecodeString(stamp.Signature)
	if err != nil {
		return "", errors.Wrap(err, "invalid stamp signature")
	}

	digest := sha256.Sum256(body)
	if !ecdsa.VerifyASN1(&ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, digest[:], sig) {
		return "", fmt.Errorf("stamp signature mismatch")
	}

	return stamp.PublicKey, nil
}
