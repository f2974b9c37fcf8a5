package gcpkms

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"hash/crc32"
	"io"
	"math/big"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/googleapis/gax-go/v2"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/wrapperspb"

	kmscommon "github.com/LampardNguyen234/evm-signer/common"
	"github.com/LampardNguyen234/evm-signer/remote"
)

// Client is the subset of *kms.KeyManagementClient used for signing.
type Client interface {
	GetPublicKey(ctx context.Context, req *kmspb.GetPublicKeyRequest, opts ...gax.CallOption) (*kmspb.PublicKey, error)
	AsymmetricSign(ctx context.Context, req *kmspb.AsymmetricSignRequest, opts ...gax.CallOption) (*kmspb.AsymmetricSignResponse, error)
}

var _ Client = (*kms.KeyManagementClient)(nil)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

type backend struct {
	client  Client
	keyName string

	// closer is set when the backend owns client.
	closer io.Closer
}

// NewGoogleKMSSigner creates a signer backed by the GCP KMS key described by cfg.
//
// If txSigner is not provided, the signer will be initiated as types.LatestSignerForChainID(cfg.ChainID).
// Note that only the first value of txSigner is used.
func NewGoogleKMSSigner(ctx context.Context, cfg Config, txSigner ...types.Signer) (*remote.Signer, error) {
	if _, err := cfg.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	client, err := newKeyManagementClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return newSigner(ctx, cfg, client, client, txSigner...)
}

// NewGoogleKMSSignerWithClient is NewGoogleKMSSigner with a caller-provided client. The client
// stays owned by the caller and is not closed by Signer.Close.
func NewGoogleKMSSignerWithClient(ctx context.Context, cfg Config, client Client, txSigner ...types.Signer) (*remote.Signer, error) {
	if _, err := cfg.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return newSigner(ctx, cfg, client, nil, txSigner...)
}

// newSigner creates the signer and closes closer if that fails.
func newSigner(ctx context.Context, cfg Config, client Client, closer io.Closer, txSigner ...types.Signer) (*remote.Signer, error) {
	var chainID *big.Int
	if cfg.ChainID != 0 {
		chainID = new(big.Int).SetUint64(cfg.ChainID)
	}

	s, err := remote.NewSigner(ctx, &backend{client: client, keyName: cfg.KeyName(), closer: closer}, chainID, txSigner...)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}

	return s, nil
}

// Close closes the KMS client when the backend created it.
func (b *backend) Close() error {
	if b.closer == nil {
		return nil
	}

	return b.closer.Close()
}

// ListKeyRings returns the names of the key rings in the project location of cfg.
func ListKeyRings(ctx context.Context, cfg Config) ([]string, error) {
	if cfg.ProjectID == "" || cfg.LocationID == "" {
		return nil, fmt.Errorf("empty ProjectID or LocationID")
	}

	client, err := newKeyManagementClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return collectKeyRings(client.ListKeyRings(ctx, &kmspb.ListKeyRingsRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s", cfg.ProjectID, cfg.LocationID),
	}))
}

// keyRingIterator is satisfied by *kms.KeyRingIterator.
type keyRingIterator interface {
	Next() (*kmspb.KeyRing, error)
}

var _ keyRingIterator = (*kms.KeyRingIterator)(nil)

// collectKeyRings drains it, fetching further pages as needed.
func collectKeyRings(it keyRingIterator) ([]string, error) {
	var names []string
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to list key rings")
		}
		names = append(names, resp.Name)
	}

	return names, nil
}

func newKeyManagementClient(ctx context.Context, cfg Config) (*kms.KeyManagementClient, error) {
	var opts []option.ClientOption
	if loc := cfg.credentialLocation(); loc != "" {
		opts = append(opts, option.WithCredentialsFile(loc))
	}

	client, err := kms.NewKeyManagementClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCP KMS client")
	}

	return client, nil
}

func crc32c(data []byte) int64 {
	return int64(crc32.Checksum(data, crc32cTable))
}

// PublicKey fetches the PEM public key of the key version.
func (b *backend) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	pubKey, err := b.client.GetPublicKey(ctx, &kmspb.GetPublicKeyRequest{Name: b.keyName})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key of %v", b.keyName)
	}
	if pubKey.PemCrc32C != nil && crc32c([]byte(pubKey.Pem)) != pubKey.PemCrc32C.Value {
		return nil, fmt.Errorf("GetPublicKey: response corrupted in-transit")
	}

	return kmscommon.ParsePEMPublicKey(pubKey.Pem)
}

// SignDigest calls the remote GCP KMS to sign a given digested message.
// Although the GCP KMS does not support keccak256 hash function (it uses SHA256 instead), it will not care about
// which hash function to use if you send the hash of message to the KMS.
func (b *backend) SignDigest(ctx context.Context, digest common.Hash) (kmscommon.Signature, error) {
	req := &kmspb.AsymmetricSignRequest{
		Name: b.keyName,
		Digest: &kmspb.Digest{
			// we send the hash to the remote KMS, not the actual data
			Digest: &kmspb.Digest_Sha256{
				Sha256: digest[:],
			},
		},
		DigestCrc32C: wrapperspb.Int64(crc32c(digest[:])),
	}

	result, err := b.client.AsymmetricSign(ctx, req)
	if err != nil {
		return kmscommon.Signature{}, errors.Wrapf(err, "GCP KMS sign failed for %v", b.keyName)
	}

	// perform integrity verification on result
	if !result.VerifiedDigestCrc32C {
		return kmscommon.Signature{}, fmt.Errorf("AsymmetricSign: request corrupted in-transit")
	}
	if result.SignatureCrc32C == nil || crc32c(result.Signature) != result.SignatureCrc32C.Value {
		return kmscommon.Signature{}, fmt.Errorf("AsymmetricSign: response corrupted in-transit")
	}

	return kmscommon.ParseDERSignature(result.Signature)
}
