package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// newTestSolanaSecret builds a deterministic 64-byte ed25519 secret
func newTestSolanaSecret(t *testing.T) []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return ed25519.NewKeyFromSeed(seed)
}

func TestParseSolanaPrivateKeyAllFormats(t *testing.T) {
	secret := newTestSolanaSecret(t)
	wantAddress := solana.PrivateKey(secret).PublicKey().String()

	// json.Marshal on []byte would emit a base64 string; the wallet-app
	// export format is a plain integer array, so build it from ints.
	intSecret := make([]int, len(secret))
	for i, b := range secret {
		intSecret[i] = int(b)
	}
	jsonBytes, err := json.Marshal(intSecret)
	if err != nil {
		t.Fatalf("Failed to marshal secret: %v", err)
	}

	commaParts := make([]string, len(secret))
	for i, b := range secret {
		commaParts[i] = strconv.Itoa(int(b))
	}

	inputs := map[string]string{
		"hex":        hex.EncodeToString(secret),
		"hex-0x":     "0x" + hex.EncodeToString(secret),
		"base58":     base58.Encode(secret),
		"json-array": string(jsonBytes),
		"comma-list": strings.Join(commaParts, ","),
	}

	for name, input := range inputs {
		decoded, err := ParseSolanaPrivateKey(input)
		if err != nil {
			t.Errorf("%s: parse failed: %v", name, err)
			continue
		}
		if len(decoded) != 64 {
			t.Errorf("%s: expected 64 bytes, got %d", name, len(decoded))
			continue
		}
		address := solana.PrivateKey(decoded).PublicKey().String()
		if address != wantAddress {
			t.Errorf("%s: expected address %s, got %s", name, wantAddress, address)
		}
	}
}

func TestParseSolanaPrivateKeyRejectsBadInput(t *testing.T) {
	inputs := []string{
		"",
		"abc",
		"0xdeadbeef",
		"[1,2,3]",
		"1,2,3",
		"[1,2,\"x\"]",
		strings.Repeat("zz", 64),
	}

	for _, input := range inputs {
		if _, err := ParseSolanaPrivateKey(input); !errors.Is(err, ErrInvalidSolanaKey) {
			t.Errorf("Expected ErrInvalidSolanaKey for %q, got %v", input, err)
		}
	}
}

func TestParseSolanaPrivateKeyRejectsShortKey(t *testing.T) {
	// 32-byte seed alone is not a valid Solana export
	seed := newTestSolanaSecret(t)[:32]
	if _, err := ParseSolanaPrivateKey(base58.Encode(seed)); !errors.Is(err, ErrInvalidSolanaKey) {
		t.Errorf("Expected ErrInvalidSolanaKey for 32-byte key, got %v", err)
	}
}
