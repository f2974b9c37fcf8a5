package awskms

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	kmscommon "github.com/LampardNguyen234/evm-signer/common"
	"github.com/LampardNguyen234/evm-signer/remote"
)

// Client is the subset of *kms.Client used for signing.
type Client interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

var _ Client = (*kms.Client)(nil)

type backend struct {
	client Client
	keyID  string
}

// NewAmazonKMSSigner creates a signer backed by the AWS KMS key cfg.KeyID.
//
// Example:
//
//	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("AWS_REGION"))
//	if err != nil {
//		panic(err)
//	}
//
//	s, err := NewAmazonKMSSigner(ctx, Config{KeyID: "YOUR_KEY_ID_HERE", ChainID: 1}, kms.NewFromConfig(awsCfg))
//	if err != nil {
//		panic(err)
//	}
func NewAmazonKMSSigner(ctx context.Context, cfg Config, client Client, txSigner ...types.Signer) (*remote.Signer, error) {
	if _, err := cfg.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return remote.NewSigner(ctx, &backend{client: client, keyID: cfg.KeyID}, chainID(cfg.ChainID), txSigner...)
}

// NewAmazonKMSSignerWithStaticCredentials is an alternative of NewAmazonKMSSigner that builds the
// KMS client from a StaticCredentialsConfig.
func NewAmazonKMSSignerWithStaticCredentials(ctx context.Context, cfg StaticCredentialsConfig, txSigner ...types.Signer) (*remote.Signer, error) {
	if _, err := cfg.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return NewAmazonKMSSigner(ctx, cfg.Config, kms.NewFromConfig(awsCfg), txSigner...)
}

// NewAmazonKMSSignerWithDefaultCredentials builds the KMS client from the default AWS credential
// chain (environment, shared config, instance role). An empty region defers to that chain as well.
func NewAmazonKMSSignerWithDefaultCredentials(ctx context.Context, cfg Config, region string, txSigner ...types.Signer) (*remote.Signer, error) {
	if _, err := cfg.IsValid(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return NewAmazonKMSSigner(ctx, cfg, kms.NewFromConfig(awsCfg), txSigner...)
}

// PublicKey fetches the DER-encoded public key of the KMS key.
func (b *backend) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	out, err := b.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(b.keyID),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key from AWS KMS for KeyId=%v", b.keyID)
	}

	return kmscommon.ParseSPKIPublicKey(out.PublicKey)
}

// SignDigest calls the remote AWS KMS to sign a given digested message.
// Although the AWS KMS does not support keccak256 hash function (it uses SHA256 instead), it will not care about
// which hash function to use if you send the hash of message to the KMS.
func (b *backend) SignDigest(ctx context.Context, digest common.Hash) (kmscommon.Signature, error) {
	out, err := b.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(b.keyID),
		Message:          digest[:],
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      kmstypes.MessageTypeDigest,
	})
	if err != nil {
		return kmscommon.Signature{}, errors.Wrapf(err, "AWS KMS sign failed for KeyId=%v", b.keyID)
	}

	return kmscommon.ParseDERSignature(out.Signature)
}

func chainID(id uint64) *big.Int {
	if id == 0 {
		return nil
	}

	return new(big.Int).SetUint64(id)
}
