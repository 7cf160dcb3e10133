package chains

import (
	"errors"
	"testing"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

func TestRegistryKnownChains(t *testing.T) {
	r := NewRegistry(nil)

	tests := []struct {
		key     string
		chainID int64
		symbol  string
		isEVM   bool
	}{
		{Ethereum, 1, "ETH", true},
		{BSC, 56, "BNB", true},
		{Polygon, 137, "POL", true},
		{Solana, 0, "SOL", false},
	}

	for _, tt := range tests {
		chain, err := r.Get(tt.key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", tt.key, err)
		}
		if chain.ChainID != tt.chainID {
			t.Errorf("%s: expected chain id %d, got %d", tt.key, tt.chainID, chain.ChainID)
		}
		if chain.NativeSymbol != tt.symbol {
			t.Errorf("%s: expected symbol %s, got %s", tt.key, tt.symbol, chain.NativeSymbol)
		}
		if chain.IsEVM != tt.isEVM {
			t.Errorf("%s: expected IsEVM %v", tt.key, tt.isEVM)
		}
		if chain.RPCURL == "" {
			t.Errorf("%s: expected a default RPC URL", tt.key)
		}
		if len(chain.Stablecoins) == 0 {
			t.Errorf("%s: expected a stablecoin watch-list", tt.key)
		}
	}
}

func TestRegistryUnsupportedChain(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Get("dogecoin")
	if !errors.Is(err, ErrUnsupportedChain) {
		t.Errorf("Expected ErrUnsupportedChain, got %v", err)
	}
	if r.IsSupported("dogecoin") {
		t.Error("Expected dogecoin to be unsupported")
	}
}

func TestRegistryPolygonFallback(t *testing.T) {
	r := NewRegistry(nil)

	polygon, err := r.Get(Polygon)
	if err != nil {
		t.Fatalf("Get(polygon) failed: %v", err)
	}
	if polygon.FallbackRPCURL == "" {
		t.Error("Expected polygon to carry a fallback RPC URL")
	}

	eth, _ := r.Get(Ethereum)
	if eth.FallbackRPCURL != "" {
		t.Error("Expected ethereum to have no fallback RPC URL")
	}
}

func TestRegistryConfigOverride(t *testing.T) {
	cm := utils.NewConfigManager("")
	cm.SetConfig("rpc_ethereum", "http://localhost:8545")

	r := NewRegistry(cm)
	eth, err := r.Get(Ethereum)
	if err != nil {
		t.Fatalf("Get(ethereum) failed: %v", err)
	}
	if eth.RPCURL != "http://localhost:8545" {
		t.Errorf("Expected RPC override, got %s", eth.RPCURL)
	}
}
