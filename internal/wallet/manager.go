package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/zalando/go-keyring"

	"github.com/proofmesh-labs/proofmesh-node/internal/chains"
	"github.com/proofmesh-labs/proofmesh-node/internal/database"
	"github.com/proofmesh-labs/proofmesh-node/internal/keystore"
	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
)

// Secret input kinds recognized by ClassifySecretInput
const (
	SecretKindMnemonic   = "mnemonic"
	SecretKindPrivateKey = "private_key"
)

// CreatedWallet is returned from Create. The mnemonic appears here exactly
// once and is never logged or persisted.
type CreatedWallet struct {
	WalletID string
	Address  string
	Mnemonic string
	Name     string
	Chain    string
}

// ImportedWallet is returned from Import, without any secret material
type ImportedWallet struct {
	WalletID string
	Address  string
	Name     string
	Chain    string
}

// Manager owns the wallet key lifecycle: create, import, delete. Public
// rows go to sqlite, secrets to the OS keyring.
type Manager struct {
	wallets  *database.WalletsManager
	keystore *keystore.Keystore
	registry *chains.Registry
	logger   *utils.LogsManager
}

// NewManager creates a wallet lifecycle manager
func NewManager(wallets *database.WalletsManager, ks *keystore.Keystore, registry *chains.Registry, logger *utils.LogsManager) *Manager {
	return &Manager{
		wallets:  wallets,
		keystore: ks,
		registry: registry,
		logger:   logger,
	}
}

// Create generates a fresh wallet for the chain from a new BIP-39 mnemonic
func (m *Manager) Create(ctx context.Context, userID, chainKey, name string) (*CreatedWallet, error) {
	chain, err := m.registry.Get(chainKey)
	if err != nil {
		return nil, err
	}

	mnemonic, err := NewMnemonic()
	if err != nil {
		return nil, err
	}

	address, secretHex, err := deriveForChain(chain, mnemonic)
	if err != nil {
		return nil, err
	}

	walletID, err := m.persist(ctx, userID, chainKey, address, name, secretHex)
	if err != nil {
		return nil, err
	}

	m.logger.Info(fmt.Sprintf("Created %s wallet %s (%s)", chainKey, walletID, address), "wallet")

	return &CreatedWallet{
		WalletID: walletID,
		Address:  address,
		Mnemonic: mnemonic,
		Name:     name,
		Chain:    chainKey,
	}, nil
}

// Import adds a wallet from a mnemonic or an exported private key. The
// returned value carries no secret material.
func (m *Manager) Import(ctx context.Context, userID, chainKey, secretInput, name string) (*ImportedWallet, error) {
	chain, err := m.registry.Get(chainKey)
	if err != nil {
		return nil, err
	}

	var address, secretHex string

	if ClassifySecretInput(secretInput) == SecretKindMnemonic {
		mnemonic := normalizeMnemonic(secretInput)
		address, secretHex, err = deriveForChain(chain, mnemonic)
	} else if chain.IsEVM {
		address, secretHex, err = parseEVMPrivateKey(secretInput)
	} else {
		address, secretHex, err = parseSolanaSecret(secretInput)
	}
	if err != nil {
		return nil, err
	}

	walletID, err := m.persist(ctx, userID, chainKey, address, name, secretHex)
	if err != nil {
		return nil, err
	}

	m.logger.Info(fmt.Sprintf("Imported %s wallet %s (%s)", chainKey, walletID, address), "wallet")

	return &ImportedWallet{
		WalletID: walletID,
		Address:  address,
		Name:     name,
		Chain:    chainKey,
	}, nil
}

// persist checks for duplicates, stores the wallet row, then the secret
func (m *Manager) persist(ctx context.Context, userID, chainKey, address, name, secretHex string) (string, error) {
	existing, err := m.wallets.FindByAddress(ctx, userID, chainKey, address)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrWalletAlreadyExists
	}

	row := &database.Wallet{
		UserID:  userID,
		Chain:   chainKey,
		Address: address,
		Name:    name,
	}
	if err := m.wallets.InsertWallet(ctx, row); err != nil {
		return "", err
	}

	if err := m.keystore.SetWalletSecret(row.ID, secretHex); err != nil {
		// Undo the row so we never keep a wallet whose key is unrecoverable
		if delErr := m.wallets.DeleteWallet(ctx, row.ID); delErr != nil {
			m.logger.Error(fmt.Sprintf("Failed to roll back wallet row %s: %v", row.ID, delErr), "wallet")
		}
		return "", err
	}

	return row.ID, nil
}

// Delete removes a wallet's secret and row. A failed keyring delete is
// logged and the row is removed anyway; the orphaned keyring entry is
// unreachable without the row.
func (m *Manager) Delete(ctx context.Context, walletID string) error {
	row, err := m.wallets.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}
	if row == nil {
		return ErrWalletNotFound
	}

	if err := m.keystore.DeleteWalletSecret(walletID); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		m.logger.Warn(fmt.Sprintf("Failed to delete keyring secret for wallet %s, removing row anyway: %v", walletID, err), "wallet")
	}

	return m.wallets.DeleteWallet(ctx, walletID)
}

// List returns a user's wallets
func (m *Manager) List(ctx context.Context, userID string) ([]*database.Wallet, error) {
	return m.wallets.ListWallets(ctx, userID)
}

// ClassifySecretInput distinguishes a mnemonic phrase from a private key:
// twelve or more whitespace-separated tokens means mnemonic.
func ClassifySecretInput(input string) string {
	if len(strings.Fields(input)) >= 12 {
		return SecretKindMnemonic
	}
	return SecretKindPrivateKey
}

// IsValidAddress performs a syntactic address check for the chain. Solana
// validation is base58 alphabet and decoded length only; it does not prove
// the address is an existing account.
func (m *Manager) IsValidAddress(address, chainKey string) bool {
	chain, err := m.registry.Get(chainKey)
	if err != nil {
		return false
	}

	if chain.IsEVM {
		return isValidEVMAddress(address)
	}
	return isValidSolanaAddress(address)
}

func isValidEVMAddress(address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	hexPart := strings.TrimPrefix(address, "0x")
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		// No checksum information in an all-lower or all-upper address
		return true
	}
	return common.HexToAddress(address).Hex() == address
}

func isValidSolanaAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

func normalizeMnemonic(input string) string {
	return strings.Join(strings.Fields(strings.ToLower(input)), " ")
}

// deriveForChain derives (address, stored secret hex) from a mnemonic
func deriveForChain(chain *chains.Chain, mnemonic string) (string, string, error) {
	if chain.IsEVM {
		key, err := DeriveEVMKey(mnemonic)
		if err != nil {
			return "", "", err
		}
		address, err := EVMAddressFromKey(key)
		if err != nil {
			return "", "", err
		}
		return address, hex.EncodeToString(ethcrypto.FromECDSA(key)), nil
	}

	key, err := DeriveSolanaKey(mnemonic)
	if err != nil {
		return "", "", err
	}
	address := solana.PublicKey(key.Public().(ed25519.PublicKey)).String()
	return address, hex.EncodeToString(key), nil
}

func parseEVMPrivateKey(input string) (string, string, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(input), "0x")
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	key, err := ethcrypto.ToECDSA(keyBytes)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	address, err := EVMAddressFromKey(key)
	if err != nil {
		return "", "", err
	}
	return address, hex.EncodeToString(keyBytes), nil
}

func parseSolanaSecret(input string) (string, string, error) {
	keyBytes, err := ParseSolanaPrivateKey(input)
	if err != nil {
		return "", "", err
	}

	address := solana.PrivateKey(keyBytes).PublicKey().String()
	return address, hex.EncodeToString(keyBytes), nil
}
