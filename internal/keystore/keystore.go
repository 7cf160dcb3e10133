package keystore

import (
	"fmt"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
	"github.com/zalando/go-keyring"
)

const serviceName = "proofmesh"

// Keystore wraps the OS keyring for wallet secrets. Keys are stored under
// the service "proofmesh" with one account per wallet id, so individual
// wallets can't contend on a shared entry.
type Keystore struct {
	logger *utils.LogsManager
}

// NewKeystore creates a keystore backed by the platform keyring
func NewKeystore(logger *utils.LogsManager) *Keystore {
	return &Keystore{logger: logger}
}

func walletAccount(walletID string) string {
	return "wallet_" + walletID
}

// SetWalletSecret stores a wallet's private key material
func (ks *Keystore) SetWalletSecret(walletID, secret string) error {
	if err := keyring.Set(serviceName, walletAccount(walletID), secret); err != nil {
		ks.logger.Error(fmt.Sprintf("Failed to store secret for wallet %s: %v", walletID, err), "keystore")
		return fmt.Errorf("failed to store wallet secret: %v", err)
	}
	return nil
}

// GetWalletSecret retrieves a wallet's private key material. Returns
// keyring.ErrNotFound when no secret exists for the wallet.
func (ks *Keystore) GetWalletSecret(walletID string) (string, error) {
	secret, err := keyring.Get(serviceName, walletAccount(walletID))
	if err != nil {
		return "", err
	}
	return secret, nil
}

// DeleteWalletSecret removes a wallet's private key material
func (ks *Keystore) DeleteWalletSecret(walletID string) error {
	if err := keyring.Delete(serviceName, walletAccount(walletID)); err != nil {
		return fmt.Errorf("failed to delete wallet secret: %v", err)
	}
	return nil
}
