package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/zalando/go-keyring"

	"github.com/proofmesh-labs/proofmesh-node/internal/chains"
	"github.com/proofmesh-labs/proofmesh-node/internal/database"
	"github.com/proofmesh-labs/proofmesh-node/internal/keystore"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// TxResult describes a submitted transaction
type TxResult struct {
	Hash        string
	Status      string
	BlockNumber uint64
	GasUsed     uint64
}

// GasEstimate is an advisory gas quote
type GasEstimate struct {
	GasLimit uint64
	GasPrice *big.Int
	Known    bool
}

// TxService builds, signs and submits transfers, recording them in the
// transactions table.
type TxService struct {
	registry     *chains.Registry
	wallets      *database.WalletsManager
	transactions *database.TransactionsManager
	keystore     *keystore.Keystore
	config       *utils.ConfigManager
	logger       *utils.LogsManager
}

// NewTxService creates a transaction service
func NewTxService(registry *chains.Registry, wallets *database.WalletsManager, transactions *database.TransactionsManager, ks *keystore.Keystore, config *utils.ConfigManager, logger *utils.LogsManager) *TxService {
	return &TxService{
		registry:     registry,
		wallets:      wallets,
		transactions: transactions,
		keystore:     ks,
		config:       config,
		logger:       logger,
	}
}

// loadWalletSecret fetches the wallet row and its keyring secret
func (ts *TxService) loadWalletSecret(ctx context.Context, walletID string) (*database.Wallet, string, error) {
	row, err := ts.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return nil, "", err
	}
	if row == nil {
		return nil, "", ErrWalletNotFound
	}

	secret, err := ts.keystore.GetWalletSecret(walletID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, "", ErrPrivateKeyNotFound
		}
		return nil, "", err
	}

	return row, secret, nil
}

// SendTransaction sends a native transfer. Amount is a human decimal
// string ("0.5"), converted to minor units internally.
func (ts *TxService) SendTransaction(ctx context.Context, walletID, to, amount string) (*TxResult, error) {
	row, secret, err := ts.loadWalletSecret(ctx, walletID)
	if err != nil {
		return nil, err
	}

	chain, err := ts.registry.Get(row.Chain)
	if err != nil {
		return nil, err
	}

	if !chain.IsEVM {
		return ts.sendSolanaTransfer(ctx, row, chain, secret, to, amount)
	}
	return ts.sendEVMTransfer(ctx, row, chain, secret, to, amount)
}

func (ts *TxService) sendEVMTransfer(ctx context.Context, row *database.Wallet, chain *chains.Chain, secret, to, amount string) (*TxResult, error) {
	if !isValidEVMAddress(to) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecipientAddress, to)
	}

	wei, err := ToMinorUnits(amount, chain.NativeDecimals)
	if err != nil {
		return nil, err
	}

	privateKey, err := ethcrypto.ToECDSA(mustHexBytes(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %v", err)
	}
	defer client.Close()

	fromAddr := common.HexToAddress(row.Address)
	toAddr := common.HexToAddress(to)

	nonce, err := client.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %v", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %v", err)
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  fromAddr,
		To:    &toAddr,
		Value: wei,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %v", err)
	}

	tx := types.NewTransaction(nonce, toAddr, wei, gasLimit, gasPrice, nil)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chain.ChainID)), privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to submit transaction: %v", err)
	}

	txHash := signedTx.Hash().Hex()

	// Record as pending before waiting so a crash mid-wait keeps the hash
	record := &database.Transaction{
		WalletID:    row.ID,
		TxHash:      txHash,
		FromAddress: row.Address,
		ToAddress:   to,
		Amount:      wei.String(),
		TokenSymbol: chain.NativeSymbol,
		Status:      database.TxStatusPending,
		Chain:       chain.Key,
	}
	if err := ts.transactions.InsertTransaction(ctx, record); err != nil {
		ts.logger.Error(fmt.Sprintf("Failed to record pending transaction %s: %v", txHash, err), "transactions")
	}

	receipt, err := bind.WaitMined(ctx, client, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed while waiting for transaction %s: %v", txHash, err)
	}

	status := database.TxStatusConfirmed
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = database.TxStatusFailed
	}
	if err := ts.transactions.UpdateStatus(ctx, txHash, status); err != nil {
		ts.logger.Error(fmt.Sprintf("Failed to update transaction %s status: %v", txHash, err), "transactions")
	}

	return &TxResult{
		Hash:        txHash,
		Status:      status,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func (ts *TxService) sendSolanaTransfer(ctx context.Context, row *database.Wallet, chain *chains.Chain, secret, to, amount string) (*TxResult, error) {
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipientAddress, err)
	}

	lamports, err := ToMinorUnits(amount, chain.NativeDecimals)
	if err != nil {
		return nil, err
	}

	keyBytes, err := hex.DecodeString(secret)
	if err != nil || len(keyBytes) != 64 {
		return nil, ErrInvalidSolanaKey
	}
	privateKey := solana.PrivateKey(keyBytes)
	payer := privateKey.PublicKey()

	client := solrpc.New(chain.RPCURL)

	recent, err := client.GetRecentBlockhash(ctx, solrpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %v", err)
	}

	transferInstruction := system.NewTransferInstruction(
		lamports.Uint64(),
		payer,
		recipient,
	).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{transferInstruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %v", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &privateKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}

	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to submit transaction: %v", err)
	}

	if err := ts.waitSolanaFinalized(ctx, client, sig); err != nil {
		return nil, err
	}

	// Solana rows are recorded post-confirmation only
	record := &database.Transaction{
		WalletID:    row.ID,
		TxHash:      sig.String(),
		FromAddress: row.Address,
		ToAddress:   to,
		Amount:      lamports.String(),
		TokenSymbol: chain.NativeSymbol,
		Status:      database.TxStatusConfirmed,
		Chain:       chain.Key,
	}
	if err := ts.transactions.InsertTransaction(ctx, record); err != nil {
		ts.logger.Error(fmt.Sprintf("Failed to record transaction %s: %v", sig, err), "transactions")
	}

	return &TxResult{
		Hash:   sig.String(),
		Status: database.TxStatusConfirmed,
	}, nil
}

// waitSolanaFinalized polls signature status until finalized or timeout
func (ts *TxService) waitSolanaFinalized(ctx context.Context, client *solrpc.Client, sig solana.Signature) error {
	timeout := 60 * time.Second
	if ts.config != nil {
		timeout = ts.config.GetConfigDuration("solana_confirm_timeout", timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s not finalized before timeout", sig)
		case <-ticker.C:
			out, err := client.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(out.Value) == 0 || out.Value[0] == nil {
				continue
			}
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == solrpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

// SendTokenTransaction sends an ERC-20 transfer on an EVM chain. Token
// decimals and symbol are read live from the contract.
func (ts *TxService) SendTokenTransaction(ctx context.Context, walletID, to, amount, tokenAddress string) (*TxResult, error) {
	row, secret, err := ts.loadWalletSecret(ctx, walletID)
	if err != nil {
		return nil, err
	}

	chain, err := ts.registry.Get(row.Chain)
	if err != nil {
		return nil, err
	}
	if !chain.IsEVM {
		return nil, fmt.Errorf("%w: token transfers are only supported on EVM chains", ErrUnsupportedChain)
	}

	if !isValidEVMAddress(to) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecipientAddress, to)
	}
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenAddress)
	}

	privateKey, err := ethcrypto.ToECDSA(mustHexBytes(secret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %v", err)
	}
	defer client.Close()

	contractAddr := common.HexToAddress(tokenAddress)

	decimalsRaw, err := erc20Call(ctx, client, contractAddr, "decimals()", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read token decimals: %v", err)
	}
	decimals := int(new(big.Int).SetBytes(decimalsRaw).Int64())

	symbol := ""
	if symbolRaw, err := erc20Call(ctx, client, contractAddr, "symbol()", nil); err == nil {
		symbol = decodeABIString(symbolRaw)
	}

	tokenAmount, err := ToMinorUnits(amount, decimals)
	if err != nil {
		return nil, err
	}

	// transfer(address,uint256) calldata
	selector := ethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
	callData := append(selector, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	callData = append(callData, common.LeftPadBytes(tokenAmount.Bytes(), 32)...)

	fromAddr := common.HexToAddress(row.Address)

	nonce, err := client.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %v", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch gas price: %v", err)
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: fromAddr,
		To:   &contractAddr,
		Data: callData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %v", err)
	}

	tx := types.NewTransaction(nonce, contractAddr, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(chain.ChainID)), privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %v", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to submit transaction: %v", err)
	}

	txHash := signedTx.Hash().Hex()

	record := &database.Transaction{
		WalletID:    row.ID,
		TxHash:      txHash,
		FromAddress: row.Address,
		ToAddress:   to,
		Amount:      tokenAmount.String(),
		TokenSymbol: symbol,
		Status:      database.TxStatusPending,
		Chain:       chain.Key,
	}
	if err := ts.transactions.InsertTransaction(ctx, record); err != nil {
		ts.logger.Error(fmt.Sprintf("Failed to record pending transaction %s: %v", txHash, err), "transactions")
	}

	receipt, err := bind.WaitMined(ctx, client, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed while waiting for transaction %s: %v", txHash, err)
	}

	status := database.TxStatusConfirmed
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = database.TxStatusFailed
	}
	if err := ts.transactions.UpdateStatus(ctx, txHash, status); err != nil {
		ts.logger.Error(fmt.Sprintf("Failed to update transaction %s status: %v", txHash, err), "transactions")
	}

	return &TxResult{
		Hash:        txHash,
		Status:      status,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// GetTransactionStatus is advisory: an unreachable chain yields status
// "unknown" instead of an error.
func (ts *TxService) GetTransactionStatus(ctx context.Context, txHash, chainKey string) (*TxResult, error) {
	chain, err := ts.registry.Get(chainKey)
	if err != nil {
		return nil, err
	}

	if !chain.IsEVM {
		return ts.getSolanaTxStatus(ctx, chain, txHash)
	}

	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return &TxResult{Hash: txHash, Status: "unknown"}, nil
	}
	defer client.Close()

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &TxResult{Hash: txHash, Status: database.TxStatusPending}, nil
		}
		return &TxResult{Hash: txHash, Status: "unknown"}, nil
	}

	status := database.TxStatusConfirmed
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = database.TxStatusFailed
	}
	return &TxResult{
		Hash:        txHash,
		Status:      status,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func (ts *TxService) getSolanaTxStatus(ctx context.Context, chain *chains.Chain, txHash string) (*TxResult, error) {
	sig, err := solana.SignatureFromBase58(txHash)
	if err != nil {
		return nil, fmt.Errorf("invalid Solana signature: %v", err)
	}

	client := solrpc.New(chain.RPCURL)
	out, err := client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return &TxResult{Hash: txHash, Status: "unknown"}, nil
	}
	if len(out.Value) == 0 || out.Value[0] == nil {
		return &TxResult{Hash: txHash, Status: database.TxStatusPending}, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return &TxResult{Hash: txHash, Status: database.TxStatusFailed}, nil
	}
	if status.ConfirmationStatus == solrpc.ConfirmationStatusFinalized {
		return &TxResult{Hash: txHash, Status: database.TxStatusConfirmed}, nil
	}
	return &TxResult{Hash: txHash, Status: database.TxStatusPending}, nil
}

// EstimateGas is advisory: failures yield Known=false, never an error
func (ts *TxService) EstimateGas(ctx context.Context, from, to, amount, chainKey string) (*GasEstimate, error) {
	chain, err := ts.registry.Get(chainKey)
	if err != nil {
		return nil, err
	}
	if !chain.IsEVM {
		// Solana fees are flat per signature; nothing to estimate live
		return &GasEstimate{GasLimit: 1, Known: false}, nil
	}

	wei, err := ToMinorUnits(amount, chain.NativeDecimals)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return &GasEstimate{Known: false}, nil
	}
	defer client.Close()

	toAddr := common.HexToAddress(to)
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &toAddr,
		Value: wei,
	})
	if err != nil {
		return &GasEstimate{Known: false}, nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return &GasEstimate{GasLimit: gasLimit, Known: false}, nil
	}

	return &GasEstimate{GasLimit: gasLimit, GasPrice: gasPrice, Known: true}, nil
}

// mustHexBytes decodes stored hex secrets; stored values are written by
// this package so a decode failure means external tampering.
func mustHexBytes(s string) []byte {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil
	}
	return b
}
