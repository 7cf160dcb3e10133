package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/proofmesh-labs/proofmesh-node/internal/chains"
	"github.com/proofmesh-labs/proofmesh-node/internal/database"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// TokenBalance is an ERC-20 or SPL token balance read
type TokenBalance struct {
	TokenAddress string
	Symbol       string
	Decimals     int
	Balance      *big.Int
	Formatted    string
}

// WalletBalances aggregates native and token balances for one wallet
type WalletBalances struct {
	WalletID string
	Chain    string
	Address  string
	Native   string
	Tokens   []*TokenBalance
}

// BalanceService reads native and token balances across chains
type BalanceService struct {
	registry *chains.Registry
	wallets  *database.WalletsManager
	config   *utils.ConfigManager
	logger   *utils.LogsManager
}

// NewBalanceService creates a balance query service
func NewBalanceService(registry *chains.Registry, wallets *database.WalletsManager, config *utils.ConfigManager, logger *utils.LogsManager) *BalanceService {
	return &BalanceService{
		registry: registry,
		wallets:  wallets,
		config:   config,
		logger:   logger,
	}
}

func (bs *BalanceService) balanceTimeout() time.Duration {
	if bs.config == nil {
		return 10 * time.Second
	}
	return bs.config.GetConfigDuration("balance_timeout", 10*time.Second)
}

// GetBalance returns the native balance as a human decimal string
func (bs *BalanceService) GetBalance(ctx context.Context, address, chainKey string) (string, error) {
	chain, err := bs.registry.Get(chainKey)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, bs.balanceTimeout())
	defer cancel()

	if !chain.IsEVM {
		return bs.getSolanaNativeBalance(ctx, chain, address)
	}
	return bs.getEVMNativeBalance(ctx, chain, address)
}

func (bs *BalanceService) getEVMNativeBalance(ctx context.Context, chain *chains.Chain, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid EVM address: %s", address)
	}

	balance, err := bs.evmBalanceAt(ctx, chain.RPCURL, address)
	if err != nil && chain.FallbackRPCURL != "" {
		bs.logger.Warn(fmt.Sprintf("Balance query on %s failed, retrying against fallback RPC: %v", chain.Key, err), "balance")
		balance, err = bs.evmBalanceAt(ctx, chain.FallbackRPCURL, address)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query %s balance: %v", chain.Key, err)
	}

	return FromMinorUnits(balance, chain.NativeDecimals), nil
}

func (bs *BalanceService) evmBalanceAt(ctx context.Context, rpcURL, address string) (*big.Int, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %v", err)
	}
	defer client.Close()

	return client.BalanceAt(ctx, common.HexToAddress(address), nil)
}

func (bs *BalanceService) getSolanaNativeBalance(ctx context.Context, chain *chains.Chain, address string) (string, error) {
	pubKey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("invalid Solana address: %v", err)
	}

	client := solrpc.New(chain.RPCURL)
	result, err := client.GetBalance(ctx, pubKey, solrpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to query SOL balance: %v", err)
	}

	return FromMinorUnits(new(big.Int).SetUint64(result.Value), chain.NativeDecimals), nil
}

// GetTokenBalance reads one token's balance, symbol and decimals
func (bs *BalanceService) GetTokenBalance(ctx context.Context, address, tokenAddress, chainKey string) (*TokenBalance, error) {
	chain, err := bs.registry.Get(chainKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, bs.balanceTimeout())
	defer cancel()

	if !chain.IsEVM {
		return bs.getSolanaTokenBalance(ctx, chain, address, tokenAddress)
	}
	return bs.getEVMTokenBalance(ctx, chain, address, tokenAddress)
}

// getEVMTokenBalance reads balanceOf, decimals and symbol concurrently via
// raw eth_call with keccak selectors.
func (bs *BalanceService) getEVMTokenBalance(ctx context.Context, chain *chains.Chain, address, tokenAddress string) (*TokenBalance, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid EVM address: %s", address)
	}
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenAddress)
	}

	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %v", err)
	}
	defer client.Close()

	contractAddr := common.HexToAddress(tokenAddress)

	var balance *big.Int
	var decimals int
	var symbol string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := erc20Call(gctx, client, contractAddr, "balanceOf(address)",
			common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32))
		if err != nil {
			return fmt.Errorf("balanceOf failed: %v", err)
		}
		balance = new(big.Int).SetBytes(result)
		return nil
	})
	g.Go(func() error {
		result, err := erc20Call(gctx, client, contractAddr, "decimals()", nil)
		if err != nil {
			return fmt.Errorf("decimals failed: %v", err)
		}
		decimals = int(new(big.Int).SetBytes(result).Int64())
		return nil
	})
	g.Go(func() error {
		result, err := erc20Call(gctx, client, contractAddr, "symbol()", nil)
		if err != nil {
			return fmt.Errorf("symbol failed: %v", err)
		}
		symbol = decodeABIString(result)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &TokenBalance{
		TokenAddress: tokenAddress,
		Symbol:       symbol,
		Decimals:     decimals,
		Balance:      balance,
		Formatted:    FromMinorUnits(balance, decimals),
	}, nil
}

// erc20Call performs a raw eth_call against a contract using the first
// four bytes of the keccak hash of the method signature.
func erc20Call(ctx context.Context, client *ethclient.Client, contract common.Address, signature string, arg []byte) ([]byte, error) {
	selector := ethcrypto.Keccak256([]byte(signature))[:4]
	callData := append(selector, arg...)

	msg := ethereum.CallMsg{
		To:   &contract,
		Data: callData,
	}
	return client.CallContract(ctx, msg, nil)
}

// decodeABIString decodes a dynamic ABI string return value, falling back
// to a bytes32 read for non-standard tokens.
func decodeABIString(data []byte) string {
	if len(data) >= 64 {
		length := new(big.Int).SetBytes(data[32:64]).Int64()
		if length > 0 && 64+length <= int64(len(data)) {
			return string(data[64 : 64+length])
		}
	}
	return strings.TrimRight(string(data), "\x00")
}

// getSolanaTokenBalance reads an SPL token balance via the associated
// token account. A missing account means zero balance, not an error.
func (bs *BalanceService) getSolanaTokenBalance(ctx context.Context, chain *chains.Chain, address, tokenMint string) (*TokenBalance, error) {
	pubKey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid Solana address: %v", err)
	}

	mint, err := solana.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint address: %v", err)
	}

	ata, _, err := solana.FindAssociatedTokenAddress(pubKey, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to find associated token account: %v", err)
	}

	client := solrpc.New(chain.RPCURL)
	result, err := client.GetTokenAccountBalance(ctx, ata, solrpc.CommitmentFinalized)
	if err != nil {
		if strings.Contains(err.Error(), "could not find account") || strings.Contains(err.Error(), "Account does not exist") {
			return &TokenBalance{
				TokenAddress: tokenMint,
				Symbol:       bs.watchedSymbol(chain, tokenMint),
				Balance:      big.NewInt(0),
				Formatted:    "0",
			}, nil
		}
		return nil, fmt.Errorf("failed to query token balance: %v", err)
	}

	balance, ok := new(big.Int).SetString(result.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("unparseable token amount: %s", result.Value.Amount)
	}
	decimals := int(result.Value.Decimals)

	return &TokenBalance{
		TokenAddress: tokenMint,
		Symbol:       bs.watchedSymbol(chain, tokenMint),
		Decimals:     decimals,
		Balance:      balance,
		Formatted:    FromMinorUnits(balance, decimals),
	}, nil
}

func (bs *BalanceService) watchedSymbol(chain *chains.Chain, tokenAddress string) string {
	for _, token := range chain.Stablecoins {
		if token.Address == tokenAddress {
			return token.Symbol
		}
	}
	return ""
}

// GetAllBalances reads the native balance plus the chain's stablecoin
// watch-list for one stored wallet. Individual token failures are logged
// and omitted from the result.
func (bs *BalanceService) GetAllBalances(ctx context.Context, walletID string) (*WalletBalances, error) {
	row, err := bs.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrWalletNotFound
	}

	chain, err := bs.registry.Get(row.Chain)
	if err != nil {
		return nil, err
	}

	native, err := bs.GetBalance(ctx, row.Address, row.Chain)
	if err != nil {
		return nil, err
	}

	balances := &WalletBalances{
		WalletID: walletID,
		Chain:    row.Chain,
		Address:  row.Address,
		Native:   native,
	}

	for _, token := range chain.Stablecoins {
		tb, err := bs.GetTokenBalance(ctx, row.Address, token.Address, row.Chain)
		if err != nil {
			bs.logger.Warn(fmt.Sprintf("Skipping %s balance for wallet %s: %v", token.Symbol, walletID, err), "balance")
			continue
		}
		if tb.Symbol == "" {
			tb.Symbol = token.Symbol
		}
		balances.Tokens = append(balances.Tokens, tb)
	}

	return balances, nil
}
