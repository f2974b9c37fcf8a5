package turnkey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPIKeyPair(t *testing.T) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return hex.EncodeToString(elliptic.MarshalCompressed(elliptic.P256(), key.X, key.Y)), fmt.Sprintf("%064x", key.D)
}

func TestNewAPIKeyStamper(t *testing.T) {
	t.Parallel()

	pub, priv := newAPIKeyPair(t)
	otherPub, _ := newAPIKeyPair(t)

	tests := []struct {
		name     string
		givePub  string
		givePriv string
		wantErr  string
	}{
		{name: "valid", givePub: pub, givePriv: priv},
		{name: "0x prefixed", givePub: "0x" + pub, givePriv: "0x" + priv},
		{name: "mismatched pair", givePub: otherPub, givePriv: priv, wantErr: "does not match"},
		{name: "bad private hex", givePub: pub, givePriv: "xyz", wantErr: "invalid API private key"},
		{name: "zero private key", givePub: pub, givePriv: "00", wantErr: "out of range"},
		{name: "bad public hex", givePub: "xyz", givePriv: priv, wantErr: "invalid API public key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := NewAPIKeyStamper(tt.givePub, tt.givePriv)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, pub, s.publicKey)
		})
	}
}

func TestAPIKeyStamper_Stamp(t *testing.T) {
	t.Parallel()

	pub, priv := newAPIKeyPair(t)
	s, err := NewAPIKeyStamper(pub, priv)
	require.NoError(t, err)

	body := []byte(`{"organizationId":"org"}`)
	header, err := s.Stamp(body)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(header)
	require.NoError(t, err)
	var stamp Stamp
	require.NoError(t, json.Unmarshal(raw, &stamp))
	assert.Equal(t, pub, stamp.PublicKey)
	assert.Equal(t, SignatureScheme, stamp.Scheme)

	got, err := VerifyStamp(header, body)
	require.NoError(t, err)
	assert.Equal(t, pub, got)

	_, err = VerifyStamp(header, []byte(`{"organizationId":"other"}`))
	require.ErrorContains(t, err, "mismatch")

	_, err = VerifyStamp("!!", body)
	require.ErrorContains(t, err, "invalid stamp encoding")
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	valid := Config{
		APIPublicKey:   "02ab",
		APIPrivateKey:  "01",
		OrganizationID: "org",
		PrivateKeyID:   "pk",
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "custom base url", modify: func(c *Config) { c.BaseURL = "https://api.turnkey.example" }},
		{name: "no public key", modify: func(c *Config) { c.APIPublicKey = "" }, wantErr: "APIPublicKey"},
		{name: "no private key", modify: func(c *Config) { c.APIPrivateKey = "" }, wantErr: "APIPrivateKey"},
		{name: "no organization", modify: func(c *Config) { c.OrganizationID = "" }, wantErr: "OrganizationID"},
		{name: "no key id", modify: func(c *Config) { c.PrivateKeyID = "" }, wantErr: "PrivateKeyID"},
		{name: "relative base url", modify: func(c *Config) { c.BaseURL = "api.turnkey.com" }, wantErr: "invalid BaseURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.modify(&cfg)

			ok, err := cfg.IsValid()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}

	assert.Equal(t, DefaultBaseURL, valid.baseURL())
}
