// Package turnkey uses the Turnkey custody API to provide a signing interface for EVM-compatible
// transactions.
//
// Requests are authenticated with an API key pair (P-256): every request body is signed and the
// signature travels in the X-Stamp header. The secp256k1 signing key itself is referenced by its
// private key id and never leaves Turnkey.
package turnkey
