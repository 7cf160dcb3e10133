package wallet

import (
	"crypto/ed25519"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewMnemonic(t *testing.T) {
	mnemonic, err := NewMnemonic()
	if err != nil {
		t.Fatalf("NewMnemonic failed: %v", err)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		t.Errorf("Generated mnemonic failed validation: %s", mnemonic)
	}

	words := 0
	for _, r := range mnemonic {
		if r == ' ' {
			words++
		}
	}
	if words+1 != 12 {
		t.Errorf("Expected 12-word mnemonic, got %d words", words+1)
	}
}

func TestDeriveEVMKeyKnownVector(t *testing.T) {
	key, err := DeriveEVMKey(testMnemonic)
	if err != nil {
		t.Fatalf("DeriveEVMKey failed: %v", err)
	}

	address, err := EVMAddressFromKey(key)
	if err != nil {
		t.Fatalf("EVMAddressFromKey failed: %v", err)
	}

	// m/44'/60'/0'/0/0 for the all-abandon test mnemonic
	expected := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	if address != expected {
		t.Errorf("Expected address %s, got %s", expected, address)
	}
}

func TestDeriveEVMKeyInvalidMnemonic(t *testing.T) {
	_, err := DeriveEVMKey("not a valid mnemonic at all")
	if err != ErrInvalidMnemonic {
		t.Errorf("Expected ErrInvalidMnemonic, got %v", err)
	}
}

func TestDeriveSolanaKeyDeterministic(t *testing.T) {
	key1, err := DeriveSolanaKey(testMnemonic)
	if err != nil {
		t.Fatalf("DeriveSolanaKey failed: %v", err)
	}
	key2, err := DeriveSolanaKey(testMnemonic)
	if err != nil {
		t.Fatalf("DeriveSolanaKey failed: %v", err)
	}

	addr1 := solana.PublicKey(key1.Public().(ed25519.PublicKey)).String()
	addr2 := solana.PublicKey(key2.Public().(ed25519.PublicKey)).String()
	if addr1 != addr2 {
		t.Errorf("Expected deterministic derivation, got %s and %s", addr1, addr2)
	}

	if !isValidSolanaAddress(addr1) {
		t.Errorf("Derived Solana address failed syntax check: %s", addr1)
	}

	// The stored 64-byte secret must round-trip through solana-go
	roundTrip := solana.PrivateKey(key1).PublicKey().String()
	if roundTrip != addr1 {
		t.Errorf("Secret round-trip mismatch: %s vs %s", roundTrip, addr1)
	}
}

func TestDifferentMnemonicsDifferentKeys(t *testing.T) {
	other, err := NewMnemonic()
	if err != nil {
		t.Fatalf("NewMnemonic failed: %v", err)
	}

	key1, err := DeriveSolanaKey(testMnemonic)
	if err != nil {
		t.Fatalf("DeriveSolanaKey failed: %v", err)
	}
	key2, err := DeriveSolanaKey(other)
	if err != nil {
		t.Fatalf("DeriveSolanaKey failed: %v", err)
	}

	if solana.PrivateKey(key1).PublicKey() == solana.PrivateKey(key2).PublicKey() {
		t.Error("Expected different mnemonics to derive different keys")
	}
}
