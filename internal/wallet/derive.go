package wallet

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// BIP-44 account paths used for the first wallet of a mnemonic
var (
	evmDerivationPath    = []uint32{44, 60, 0} // hardened prefix, then 0/0 normal
	solanaDerivationPath = []uint32{44, 501, 0, 0}
)

// NewMnemonic generates a 12-word BIP-39 mnemonic and self-checks it.
// A phrase that fails its own checksum is regenerated once before
// giving up with ErrMnemonicGeneration.
func NewMnemonic() (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		entropy, err := bip39.NewEntropy(128)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMnemonicGeneration, err)
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMnemonicGeneration, err)
		}
		if bip39.IsMnemonicValid(mnemonic) {
			return mnemonic, nil
		}
	}
	return "", ErrMnemonicGeneration
}

// DeriveEVMKey derives the secp256k1 key at m/44'/60'/0'/0/0 from a mnemonic
func DeriveEVMKey(mnemonic string) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to derive master key: %v", err)
	}

	key := master
	for _, idx := range evmDerivationPath {
		key, err = key.Derive(hdkeychain.HardenedKeyStart + idx)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child key: %v", err)
		}
	}
	// change and address index are non-hardened
	for _, idx := range []uint32{0, 0} {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child key: %v", err)
		}
	}

	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to extract private key: %v", err)
	}

	return ecPriv.ToECDSA(), nil
}

// EVMAddressFromKey returns the checksummed hex address for a secp256k1 key
func EVMAddressFromKey(privateKey *ecdsa.PrivateKey) (string, error) {
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return "", errors.New("failed to cast public key to ECDSA")
	}
	return crypto.PubkeyToAddress(*publicKey).Hex(), nil
}

// DeriveSolanaKey derives the ed25519 keypair at m/44'/501'/0'/0' from a
// mnemonic. SLIP-10 ed25519 only supports hardened steps, so every index
// on the path is hardened.
func DeriveSolanaKey(mnemonic string) (ed25519.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(mnemonic, "")

	key, chainCode := slip10MasterKey(seed)
	for _, idx := range solanaDerivationPath {
		key, chainCode = slip10DeriveHardened(key, chainCode, idx)
	}

	return ed25519.NewKeyFromSeed(key), nil
}

// slip10MasterKey computes the SLIP-10 ed25519 master key from a BIP-39 seed
func slip10MasterKey(seed []byte) (key, chainCode []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

// slip10DeriveHardened derives one hardened child per SLIP-10:
// HMAC-SHA512(chainCode, 0x00 || key || ser32(index + 2^31))
func slip10DeriveHardened(key, chainCode []byte, index uint32) (childKey, childChainCode []byte) {
	data := make([]byte, 0, 37)
	data = append(data, 0x00)
	data = append(data, key...)

	var ser [4]byte
	binary.BigEndian.PutUint32(ser[:], index+hdkeychain.HardenedKeyStart)
	data = append(data, ser[:]...)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}
