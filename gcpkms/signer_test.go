package gcpkms

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var testCfg = Config{
	ProjectID:  "evm-kms",
	LocationID: "us-west1",
	Key: Key{
		Keyring: "my-keyring-name",
		Name:    "evm-ecdsa",
		Version: "1",
	},
	ChainID: 1,
}

// fakeClient emulates GCP KMS with a local secp256k1 key.
type fakeClient struct {
	key *ecdsa.PrivateKey

	corruptRequest  bool
	corruptResponse bool
	publicKeyErr    error
	closed          int
}

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

func newFakeClient(t *testing.T) *fakeClient {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &fakeClient{key: key}
}

func (f *fakeClient) GetPublicKey(_ context.Context, req *kmspb.GetPublicKeyRequest, _ ...gax.CallOption) (*kmspb.PublicKey, error) {
	if f.publicKeyErr != nil {
		return nil, f.publicKeyErr
	}

	var info struct {
		Algorithm struct {
			Algorithm  asn1.ObjectIdentifier
			Parameters asn1.ObjectIdentifier
		}
		PublicKey asn1.BitString
	}
	info.Algorithm.Algorithm = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	info.Algorithm.Parameters = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	info.PublicKey = asn1.BitString{Bytes: crypto.FromECDSAPub(&f.key.PublicKey), BitLength: 65 * 8}
	der, err := asn1.Marshal(info)
	if err != nil {
		return nil, err
	}

	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	return &kmspb.PublicKey{
		Name:      req.Name,
		Pem:       pemKey,
		PemCrc32C: wrapperspb.Int64(crc32c([]byte(pemKey))),
	}, nil
}

func (f *fakeClient) AsymmetricSign(_ context.Context, req *kmspb.AsymmetricSignRequest, _ ...gax.CallOption) (*kmspb.AsymmetricSignResponse, error) {
	digest := req.Digest.GetSha256()
	raw, err := crypto.Sign(digest, f.key)
	if err != nil {
		return nil, err
	}

	der, err := asn1.Marshal(struct{ R, S *big.Int }{
		new(big.Int).SetBytes(raw[:32]),
		new(big.Int).SetBytes(raw[32:64]),
	})
	if err != nil {
		return nil, err
	}

	sigCRC := crc32c(der)
	if f.corruptResponse {
		sigCRC++
	}

	return &kmspb.AsymmetricSignResponse{
		Name:                 req.Name,
		Signature:            der,
		SignatureCrc32C:      wrapperspb.Int64(sigCRC),
		VerifiedDigestCrc32C: !f.corruptRequest && req.DigestCrc32C.GetValue() == crc32c(digest),
	}, nil
}

func TestConfig_KeyName(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"projects/evm-kms/locations/us-west1/keyRings/my-keyring-name/cryptoKeys/evm-ecdsa/cryptoKeyVersions/1",
		testCfg.KeyName())

	bad := testCfg
	bad.Key.Version = ""
	_, err := bad.IsValid()
	require.ErrorContains(t, err, "invalid Key")
}

func TestGoogleKMSSigner_SignHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeClient(t)

	s, err := NewGoogleKMSSignerWithClient(ctx, testCfg, client)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(client.key.PublicKey), s.GetAddress())

	digest := crypto.Keccak256Hash([]byte("Hello World"))
	sig, err := s.SignHash(ctx, digest)
	require.NoError(t, err)

	recovered, err := crypto.SigToPub(digest[:], sig)
	require.NoError(t, err)
	assert.Equal(t, s.GetAddress(), crypto.PubkeyToAddress(*recovered))
}

func TestGoogleKMSSigner_Integrity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	digest := crypto.Keccak256Hash([]byte("integrity"))

	client := newFakeClient(t)
	s, err := NewGoogleKMSSignerWithClient(ctx, testCfg, client)
	require.NoError(t, err)

	client.corruptRequest = true
	_, err = s.SignHash(ctx, digest)
	require.ErrorContains(t, err, "request corrupted in-transit")

	client.corruptRequest = false
	client.corruptResponse = true
	_, err = s.SignHash(ctx, digest)
	require.ErrorContains(t, err, "response corrupted in-transit")
}

func TestNewGoogleKMSSigner_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewGoogleKMSSigner(context.Background(), Config{})
	require.ErrorContains(t, err, "invalid config")

	_, err = ListKeyRings(context.Background(), Config{})
	require.Error(t, err)
}

func TestGoogleKMSSigner_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	owned := newFakeClient(t)
	s, err := newSigner(ctx, testCfg, owned, owned)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, 1, owned.closed)

	borrowed := newFakeClient(t)
	s, err = NewGoogleKMSSignerWithClient(ctx, testCfg, borrowed)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Zero(t, borrowed.closed)

	broken := newFakeClient(t)
	broken.publicKeyErr = errors.New("permission denied")
	_, err = newSigner(ctx, testCfg, broken, broken)
	require.ErrorContains(t, err, "permission denied")
	assert.Equal(t, 1, broken.closed)
}

// pagedKeyRings serves key rings page by page, like the GAPIC iterator.
type pagedKeyRings struct {
	pages [][]*kmspb.KeyRing
	err   error
}

func (p *pagedKeyRings) Next() (*kmspb.KeyRing, error) {
	for len(p.pages) > 0 && len(p.pages[0]) == 0 {
		p.pages = p.pages[1:]
	}
	if len(p.pages) == 0 {
		if p.err != nil {
			return nil, p.err
		}
		return nil, iterator.Done
	}

	next := p.pages[0][0]
	p.pages[0] = p.pages[0][1:]

	return next, nil
}

func TestCollectKeyRings(t *testing.T) {
	t.Parallel()

	parent := "projects/evm-kms/locations/us-west1/keyRings/"

	tests := []struct {
		name    string
		give    *pagedKeyRings
		want    []string
		wantErr string
	}{
		{
			name: "empty",
			give: &pagedKeyRings{},
		},
		{
			name: "several pages",
			give: &pagedKeyRings{pages: [][]*kmspb.KeyRing{
				{{Name: parent + "a"}, {Name: parent + "b"}},
				{},
				{{Name: parent + "c"}},
			}},
			want: []string{parent + "a", parent + "b", parent + "c"},
		},
		{
			name: "page error",
			give: &pagedKeyRings{
				pages: [][]*kmspb.KeyRing{{{Name: parent + "a"}}},
				err:   errors.New("quota exceeded"),
			},
			wantErr: "failed to list key rings: quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := collectKeyRings(tt.give)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
