package wallet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
)

// solanaKeyFormat is one recognized private key encoding. Formats are tried
// in order; the first one that decodes to 64 bytes wins.
type solanaKeyFormat struct {
	name  string
	parse func(string) ([]byte, error)
}

var solanaKeyFormats = []solanaKeyFormat{
	{"hex", parseSolanaHexKey},
	{"base58", parseSolanaBase58Key},
	{"json-array", parseSolanaJSONKey},
	{"comma-list", parseSolanaCommaKey},
}

// ParseSolanaPrivateKey decodes a Solana secret key from any supported
// wallet export format into the raw 64-byte ed25519 secret.
func ParseSolanaPrivateKey(input string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrInvalidSolanaKey
	}

	for _, format := range solanaKeyFormats {
		decoded, err := format.parse(input)
		if err != nil {
			continue
		}
		if len(decoded) != 64 {
			continue
		}
		return decoded, nil
	}

	return nil, ErrInvalidSolanaKey
}

func parseSolanaHexKey(input string) ([]byte, error) {
	input = strings.TrimPrefix(input, "0x")
	if len(input) != 128 {
		return nil, fmt.Errorf("hex key must be 128 characters")
	}
	return hex.DecodeString(input)
}

func parseSolanaBase58Key(input string) ([]byte, error) {
	return base58.Decode(input)
}

// parseSolanaJSONKey handles the Phantom/Solflare export format: a JSON
// array of 64 byte values.
func parseSolanaJSONKey(input string) ([]byte, error) {
	if !strings.HasPrefix(input, "[") || !strings.HasSuffix(input, "]") {
		return nil, fmt.Errorf("not a JSON array")
	}
	var bytes []byte
	if err := json.Unmarshal([]byte(input), &bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}

func parseSolanaCommaKey(input string) ([]byte, error) {
	parts := strings.Split(input, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("not a comma-separated byte list")
	}
	decoded := make([]byte, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if value < 0 || value > 255 {
			return nil, fmt.Errorf("byte value out of range: %d", value)
		}
		decoded = append(decoded, byte(value))
	}
	return decoded, nil
}
