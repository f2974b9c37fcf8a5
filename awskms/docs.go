// Package awskms uses the Amazon Web Services' Key Management Service as a remote.Backend.
//
// The key must be an ECC_SECG_P256K1 key with SIGN_VERIFY usage. Rather than directly accessing a
// private key, the signer sends digests to AWS KMS and the private key never leaves the KMS.
package awskms
