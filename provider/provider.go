// Package provider connects to EVM JSON-RPC endpoints, Infura in particular, and exposes them
// through the go-ethereum backend interfaces used by contract bindings and signers.
package provider

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Client is the set of node methods a Provider forwards. It is satisfied by *ethclient.Client and
// by the simulated backend client.
type Client interface {
	bind.ContractBackend
	bind.DeployBackend
	ethereum.ChainIDReader
	ethereum.ChainStateReader
	ethereum.BlockNumberReader
}

// Provider is a handle to a remote node for a given network.
type Provider struct {
	Client

	network Network

	mtx     sync.Mutex
	chainID *big.Int
}

// New wraps an existing client.
func New(network Network, client Client) *Provider {
	return &Provider{Client: client, network: network, chainID: network.ChainID()}
}

// NewInfuraProvider creates a Provider pointed at the Infura endpoint of the given network. If
// apiKey is empty, DefaultInfuraCommunityKey is used.
func NewInfuraProvider(ctx context.Context, network Network, apiKey string) (*Provider, error) {
	rawURL, err := InfuraURL(network, apiKey)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		log.Warn().Str("component", "provider").Str("network", string(network)).
			Msg("INFURA_KEY not set, using the rate-limited community key")
	}

	return Dial(ctx, network, rawURL)
}

// Dial connects to rawURL and labels the connection with network.
func Dial(ctx context.Context, network Network, rawURL string) (*Provider, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %v node", network)
	}
	log.Debug().Str("component", "provider").Str("network", string(network)).Msg("provider created")

	return New(network, client), nil
}

// Network returns the network the provider was configured with.
func (p *Provider) Network() Network {
	return p.network
}

// ChainID returns the chain id of the provider's network. For networks outside the known table the
// node is asked once and the answer is cached.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.chainID != nil {
		return new(big.Int).Set(p.chainID), nil
	}

	chainID, err := p.Client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chain id")
	}
	p.chainID = chainID

	return new(big.Int).Set(chainID), nil
}

// Close releases the underlying connection if the client supports it.
func (p *Provider) Close() {
	if c, ok := p.Client.(interface{ Close() }); ok {
		c.Close()
	}
}
