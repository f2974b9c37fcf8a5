package evmsigner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LampardNguyen234/evm-signer/provider"
	"github.com/LampardNguyen234/evm-signer/turnkey/turnkeytest"
)

func resetDefaultProvider(t *testing.T) {
	t.Helper()

	reset := func() {
		providerMtx.Lock()
		defaultProvider = nil
		providerMtx.Unlock()
	}
	reset()
	t.Cleanup(reset)
}

func TestLoadEnv(t *testing.T) {
	unsetEnv(t)
	t.Setenv(EnvInfuraKey, "infura-from-process")

	require.NoError(t, LoadEnv("testdata/env.local", "testdata/does-not-exist"))

	assert.Equal(t, "infura-from-process", os.Getenv(EnvInfuraKey))
	assert.Equal(t, "pub-from-file", os.Getenv(EnvAPIPublicKey))
	assert.Equal(t, "org-from-file", os.Getenv(EnvOrganizationID))

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://api.turnkey.com", cfg.Turnkey.BaseURL)
	assert.Equal(t, "priv-from-file", cfg.Turnkey.APIPrivateKey)
}

func TestLoadEnv_Errors(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), DefaultEnvFile)))

	bad := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(bad, []byte("this is not an env line\n"), 0o600))
	require.ErrorContains(t, LoadEnv(bad), "failed to load")
}

func TestGetProvider(t *testing.T) {
	unsetEnv(t)
	resetDefaultProvider(t)
	t.Setenv(EnvInfuraKey, "test-key")

	ctx := context.Background()

	p, err := GetDefaultProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, provider.Goerli, p.Network())

	again, err := GetProvider(ctx, provider.Goerli)
	require.NoError(t, err)
	assert.Same(t, p, again)

	mainnet, err := GetProvider(ctx, provider.Mainnet)
	require.NoError(t, err)
	assert.Equal(t, provider.Mainnet, mainnet.Network())
	assert.NotSame(t, p, mainnet)

	// the default moved to mainnet, asking for goerli again builds a fresh provider
	goerli, err := GetProvider(ctx, provider.Goerli)
	require.NoError(t, err)
	assert.Equal(t, provider.Goerli, goerli.Network())
	assert.NotSame(t, p, goerli)

	_, err = GetProvider(ctx, provider.Network("ropsten"))
	require.ErrorIs(t, err, provider.ErrUnknownNetwork)
}

func TestGetTurnkeySigner(t *testing.T) {
	unsetEnv(t)
	resetDefaultProvider(t)

	srv := turnkeytest.NewServer(t)
	t.Setenv(EnvAPIPublicKey, srv.APIPublicKey)
	t.Setenv(EnvAPIPrivateKey, srv.APIPrivateKey)
	t.Setenv(EnvBaseURL, srv.URL)
	t.Setenv(EnvOrganizationID, turnkeytest.OrganizationID)

	ctx := context.Background()
	p, err := GetProvider(ctx, provider.Sepolia)
	require.NoError(t, err)

	s, err := GetTurnkeySigner(ctx, p, turnkeytest.PrivateKeyID)
	require.NoError(t, err)
	assert.Same(t, p, s.Provider())
	assert.Equal(t, crypto.PubkeyToAddress(srv.Key.PublicKey), s.GetAddress())
	assert.Equal(t, int64(11155111), s.ChainID().Int64())

	_, err = GetTurnkeySigner(ctx, p, "")
	require.ErrorContains(t, err, "empty PrivateKeyID")

	t.Setenv(EnvOrganizationID, "")
	_, err = GetTurnkeySigner(ctx, p, turnkeytest.PrivateKeyID)
	require.ErrorContains(t, err, "empty OrganizationID")
}
