package signature

import (
	"crypto/ecdsa"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// NewMnemonic generates a fresh BIP-39 mnemonic phrase a delegate operator
// can write down and later re-derive their signing key from. The secrets
// file stores this phrase, encrypted, instead of a raw key.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}

	return bip39.NewMnemonic(entropy)
}

// KeyFromMnemonic derives a deterministic secp256k1 private key from a
// BIP-39 mnemonic phrase and passphrase, the same pair a delegate typed in
// to produce NewMnemonic's output. The derivation is a plain seed hash, not
// full BIP-32 HD derivation: this chain has no notion of multiple accounts
// per phrase, so one key per phrase is all forging needs.
func KeyFromMnemonic(mnemonic, passphrase string) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("signature: invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, passphrase)

	privKey, _ := btcec.PrivKeyFromBytes(seed[:32])
	return crypto.ToECDSA(privKey.Serialize())
}
