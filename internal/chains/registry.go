package chains

import (
	"errors"
	"fmt"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// ErrUnsupportedChain is returned for chain keys outside the registry
var ErrUnsupportedChain = errors.New("unsupported chain")

// Supported chain keys
const (
	Ethereum = "ethereum"
	BSC      = "bsc"
	Polygon  = "polygon"
	Solana   = "solana"
)

// Token is a watched token contract on a chain
type Token struct {
	Symbol  string
	Address string
}

// Chain describes one supported network. EVM chains carry a chain id and
// optional fallback RPC; Solana sets IsEVM false.
type Chain struct {
	Key            string
	Name           string
	ChainID        int64
	RPCURL         string
	FallbackRPCURL string
	NativeSymbol   string
	NativeDecimals int
	IsEVM          bool
	Stablecoins    []Token
}

// Registry holds the supported chain set, with RPC endpoint overrides
// loaded from config (rpc_<chain> keys).
type Registry struct {
	chains map[string]*Chain
}

// NewRegistry builds the chain registry and applies config RPC overrides
func NewRegistry(cm *utils.ConfigManager) *Registry {
	chains := map[string]*Chain{
		Ethereum: {
			Key:            Ethereum,
			Name:           "Ethereum Mainnet",
			ChainID:        1,
			RPCURL:         "https://eth.llamarpc.com",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			IsEVM:          true,
			Stablecoins: []Token{
				{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7"},
				{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
			},
		},
		BSC: {
			Key:            BSC,
			Name:           "BNB Smart Chain",
			ChainID:        56,
			RPCURL:         "https://bsc-dataseed.binance.org",
			NativeSymbol:   "BNB",
			NativeDecimals: 18,
			IsEVM:          true,
			Stablecoins: []Token{
				{Symbol: "USDT", Address: "0x55d398326f99059fF775485246999027B3197955"},
				{Symbol: "USDC", Address: "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"},
			},
		},
		Polygon: {
			Key:            Polygon,
			Name:           "Polygon Mainnet",
			ChainID:        137,
			RPCURL:         "https://polygon-rpc.com",
			FallbackRPCURL: "https://rpc-mainnet.matic.quiknode.pro",
			NativeSymbol:   "POL",
			NativeDecimals: 18,
			IsEVM:          true,
			Stablecoins: []Token{
				{Symbol: "USDT", Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F"},
				{Symbol: "USDC", Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"},
			},
		},
		Solana: {
			Key:            Solana,
			Name:           "Solana Mainnet",
			RPCURL:         "https://api.mainnet-beta.solana.com",
			NativeSymbol:   "SOL",
			NativeDecimals: 9,
			IsEVM:          false,
			Stablecoins: []Token{
				{Symbol: "USDT", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"},
				{Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"},
			},
		},
	}

	if cm != nil {
		for key, chain := range chains {
			if override := cm.GetConfigWithDefault(fmt.Sprintf("rpc_%s", key), ""); override != "" {
				chain.RPCURL = override
			}
		}
	}

	return &Registry{chains: chains}
}

// Get returns the chain for a key, or ErrUnsupportedChain
func (r *Registry) Get(key string) (*Chain, error) {
	chain, ok := r.chains[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, key)
	}
	return chain, nil
}

// IsSupported reports whether the key names a registered chain
func (r *Registry) IsSupported(key string) bool {
	_, ok := r.chains[key]
	return ok
}

// Keys returns the supported chain keys
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.chains))
	for key := range r.chains {
		keys = append(keys, key)
	}
	return keys
}
