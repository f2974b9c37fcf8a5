// Package gcpkms uses the Google Cloud Platform's Key Management Service as a remote.Backend.
//
// The key must be an EC_SIGN_SECP256K1_SHA256 asymmetric signing key. Rather than directly
// accessing a private key, the signer sends digests to GCP KMS and the private key never leaves the KMS.
package gcpkms
