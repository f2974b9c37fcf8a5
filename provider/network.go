package provider

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// Network identifies an EVM network reachable through Infura.
type Network string

const (
	Mainnet        Network = "mainnet"
	Goerli         Network = "goerli"
	Sepolia        Network = "sepolia"
	Holesky        Network = "holesky"
	Polygon        Network = "matic"
	PolygonMumbai  Network = "maticmum"
	Optimism       Network = "optimism"
	OptimismGoerli Network = "optimism-goerli"
	Arbitrum       Network = "arbitrum"
	ArbitrumGoerli Network = "arbitrum-goerli"
)

// DefaultInfuraCommunityKey is the shared Infura project key used when no INFURA_KEY is configured.
// It is heavily rate-limited and only suitable for experiments.
const DefaultInfuraCommunityKey = "84842078b09946638c03157f83405213"

// ErrUnknownNetwork is returned for network names without a known Infura endpoint.
var ErrUnknownNetwork = errors.New("unknown network")

type networkInfo struct {
	host    string
	chainID int64
}

var networks = map[Network]networkInfo{
	Mainnet:        {host: "mainnet.infura.io", chainID: 1},
	Goerli:         {host: "goerli.infura.io", chainID: 5},
	Sepolia:        {host: "sepolia.infura.io", chainID: 11155111},
	Holesky:        {host: "holesky.infura.io", chainID: 17000},
	Polygon:        {host: "polygon-mainnet.infura.io", chainID: 137},
	PolygonMumbai:  {host: "polygon-mumbai.infura.io", chainID: 80001},
	Optimism:       {host: "optimism-mainnet.infura.io", chainID: 10},
	OptimismGoerli: {host: "optimism-goerli.infura.io", chainID: 420},
	Arbitrum:       {host: "arbitrum-mainnet.infura.io", chainID: 42161},
	ArbitrumGoerli: {host: "arbitrum-goerli.infura.io", chainID: 421613},
}

var aliases = map[string]Network{
	"homestead": Mainnet,
	"polygon":   Polygon,
	"mumbai":    PolygonMumbai,
}

// ParseNetwork resolves a network name (case-insensitive, "homestead" is accepted for mainnet).
func ParseNetwork(name string) (Network, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if n, ok := aliases[name]; ok {
		return n, nil
	}
	if _, ok := networks[Network(name)]; ok {
		return Network(name), nil
	}

	return "", errors.Wrapf(ErrUnknownNetwork, "%q", name)
}

// IsKnown reports whether n has a known Infura endpoint.
func (n Network) IsKnown() bool {
	_, ok := networks[n]
	return ok
}

// ChainID returns the chain id of a known network, or nil.
func (n Network) ChainID() *big.Int {
	info, ok := networks[n]
	if !ok {
		return nil
	}

	return big.NewInt(info.chainID)
}

// InfuraURL returns the HTTPS JSON-RPC endpoint for the network. An empty apiKey falls back to
// DefaultInfuraCommunityKey.
func InfuraURL(network Network, apiKey string) (string, error) {
	info, ok := networks[network]
	if !ok {
		return "", errors.Wrapf(ErrUnknownNetwork, "%q", network)
	}
	if apiKey == "" {
		apiKey = DefaultInfuraCommunityKey
	}

	return fmt.Sprintf("https://%s/v3/%s", info.host, apiKey), nil
}
