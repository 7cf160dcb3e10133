package keystore

import (
	"errors"
	"testing"

	"github.com/proofmesh-labs/proofmesh-node/internal/utils"
	"github.com/zalando/go-keyring"
)

func setupTestKeystore(t *testing.T) *Keystore {
	keyring.MockInit()

	cm := utils.NewConfigManager("")
	logger := utils.NewLogsManager(cm)

	return NewKeystore(logger)
}

func TestSetGetDeleteSecret(t *testing.T) {
	ks := setupTestKeystore(t)

	if err := ks.SetWalletSecret("wallet-1", "deadbeef"); err != nil {
		t.Fatalf("Failed to set secret: %v", err)
	}

	secret, err := ks.GetWalletSecret("wallet-1")
	if err != nil {
		t.Fatalf("Failed to get secret: %v", err)
	}
	if secret != "deadbeef" {
		t.Errorf("Expected secret deadbeef, got %s", secret)
	}

	if err := ks.DeleteWalletSecret("wallet-1"); err != nil {
		t.Fatalf("Failed to delete secret: %v", err)
	}

	_, err = ks.GetWalletSecret("wallet-1")
	if !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetMissingSecret(t *testing.T) {
	ks := setupTestKeystore(t)

	_, err := ks.GetWalletSecret("no-such-wallet")
	if !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSecretsIsolatedPerWallet(t *testing.T) {
	ks := setupTestKeystore(t)

	if err := ks.SetWalletSecret("wallet-a", "secret-a"); err != nil {
		t.Fatalf("Failed to set secret: %v", err)
	}
	if err := ks.SetWalletSecret("wallet-b", "secret-b"); err != nil {
		t.Fatalf("Failed to set secret: %v", err)
	}

	secretA, err := ks.GetWalletSecret("wallet-a")
	if err != nil {
		t.Fatalf("Failed to get secret: %v", err)
	}
	if secretA != "secret-a" {
		t.Errorf("Expected secret-a, got %s", secretA)
	}
}
