package wallet

import (
	"errors"

	"github.com/proofmesh-labs/proofmesh-node/internal/chains"
)

// ErrUnsupportedChain aliases the registry sentinel so callers only need
// this package for errors.Is checks.
var ErrUnsupportedChain = chains.ErrUnsupportedChain

var (
	// Key lifecycle errors
	ErrMnemonicGeneration  = errors.New("mnemonic generation produced an invalid phrase")
	ErrInvalidMnemonic     = errors.New("invalid mnemonic phrase")
	ErrInvalidPrivateKey   = errors.New("invalid private key")
	ErrInvalidSolanaKey    = errors.New("invalid Solana private key (expected 64 bytes as hex, base58, JSON array, or comma-separated bytes)")
	ErrWalletAlreadyExists = errors.New("wallet already exists for this address and chain")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrPrivateKeyNotFound  = errors.New("private key not found in keystore")

	// Transaction errors
	ErrInvalidRecipientAddress = errors.New("invalid recipient address")
	ErrInvalidAmount           = errors.New("invalid amount")
)
