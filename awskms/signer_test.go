package awskms

import (
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyID = "arn:aws:kms:us-west-2:111122223333:key/1234abcd-12ab-34cd-56ef-1234567890ab"

type spki struct {
	Algorithm struct {
		Algorithm  asn1.ObjectIdentifier
		Parameters asn1.ObjectIdentifier
	}
	PublicKey asn1.BitString
}

// fakeClient emulates AWS KMS with a local secp256k1 key.
type fakeClient struct {
	key     *ecdsa.PrivateKey
	signErr error
	highS   bool
}

func newFakeClient(t *testing.T) *fakeClient {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return &fakeClient{key: key}
}

func (f *fakeClient) GetPublicKey(_ context.Context, in *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	if *in.KeyId != testKeyID {
		return nil, &kmstypes.NotFoundException{}
	}

	var info spki
	info.Algorithm.Algorithm = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	info.Algorithm.Parameters = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	info.PublicKey = asn1.BitString{Bytes: crypto.FromECDSAPub(&f.key.PublicKey), BitLength: 65 * 8}
	der, err := asn1.Marshal(info)
	if err != nil {
		return nil, err
	}

	return &kms.GetPublicKeyOutput{KeyId: in.KeyId, PublicKey: der}, nil
}

func (f *fakeClient) Sign(_ context.Context, in *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	if in.SigningAlgorithm != kmstypes.SigningAlgorithmSpecEcdsaSha256 || in.MessageType != kmstypes.MessageTypeDigest {
		return nil, &kmstypes.InvalidKeyUsageException{}
	}

	raw, err := crypto.Sign(in.Message, f.key)
	if err != nil {
		return nil, err
	}

	sig := struct{ R, S *big.Int }{new(big.Int).SetBytes(raw[:32]), new(big.Int).SetBytes(raw[32:64])}
	if f.highS {
		sig.S = new(big.Int).Sub(crypto.S256().Params().N, sig.S)
	}
	der, err := asn1.Marshal(sig)
	if err != nil {
		return nil, err
	}

	return &kms.SignOutput{KeyId: in.KeyId, Signature: der}, nil
}

func TestNewAmazonKMSSigner(t *testing.T) {
	t.Parallel()

	client := newFakeClient(t)

	s, err := NewAmazonKMSSigner(context.Background(), Config{KeyID: testKeyID, ChainID: 1}, client)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(client.key.PublicKey), s.GetAddress())
	assert.Equal(t, int64(1), s.ChainID().Int64())

	_, err = NewAmazonKMSSigner(context.Background(), Config{}, client)
	require.ErrorContains(t, err, "empty KeyID")

	_, err = NewAmazonKMSSigner(context.Background(), Config{KeyID: "alias/unknown"}, client)
	require.ErrorContains(t, err, "failed to get public key from AWS KMS")
}

func TestAmazonKMSSigner_SignTx(t *testing.T) {
	t.Parallel()

	for _, highS := range []bool{false, true} {
		client := newFakeClient(t)
		client.highS = highS

		ctx := context.Background()
		s, err := NewAmazonKMSSigner(ctx, Config{KeyID: testKeyID, ChainID: 11155111}, client)
		require.NoError(t, err)

		to := common.HexToAddress("0x243e9517a24813a2d73e9a74cd2c1c699d0ff7a5")
		tx := types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(11155111),
			Nonce:     1,
			GasTipCap: big.NewInt(1),
			GasFeeCap: big.NewInt(10),
			Gas:       21000,
			To:        &to,
			Value:     big.NewInt(1),
		})

		signed, err := s.SignTx(ctx, tx)
		require.NoError(t, err)

		ok, err := s.HasSignedTx(signed)
		require.NoError(t, err)
		assert.True(t, ok)

		client.signErr = assert.AnError
		_, err = s.SignTx(ctx, tx)
		require.ErrorContains(t, err, "AWS KMS sign failed")
	}
}

func TestStaticCredentialsConfig_IsValid(t *testing.T) {
	t.Parallel()

	cfg := StaticCredentialsConfig{
		Config:          Config{KeyID: testKeyID},
		Region:          "us-west-2",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
	}
	ok, err := cfg.IsValid()
	require.NoError(t, err)
	assert.True(t, ok)

	noRegion := cfg
	noRegion.Region = ""
	_, err = noRegion.IsValid()
	require.ErrorContains(t, err, "empty Region")

	noSecret := cfg
	noSecret.SecretAccessKey = ""
	_, err = noSecret.IsValid()
	require.ErrorContains(t, err, "SecretAccessKey")

	_, err = NewAmazonKMSSignerWithStaticCredentials(context.Background(), StaticCredentialsConfig{})
	require.ErrorContains(t, err, "invalid config")
}
