package cmd

import (
	"crypto/ecdsa"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
)

func writeSecretFile(path string, secret signature.EncryptedSecret) error {
	data, err := json.MarshalIndent(secret, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func readSecretFile(path string) (signature.EncryptedSecret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return signature.EncryptedSecret{}, err
	}

	var secret signature.EncryptedSecret
	if err := json.Unmarshal(data, &secret); err != nil {
		return signature.EncryptedSecret{}, err
	}

	return secret, nil
}

// loadPrivateKey reads the encrypted secret at path, decrypts the mnemonic
// under passphrase, and derives the signing key from it.
func loadPrivateKey(path, passphrase string) (*ecdsa.PrivateKey, error) {
	secret, err := readSecretFile(path)
	if err != nil {
		return nil, err
	}

	mnemonic, err := signature.DecryptSecret(secret, passphrase)
	if err != nil {
		return nil, err
	}

	return signature.KeyFromMnemonic(mnemonic, passphrase)
}

// signatureAddress derives the account address for a loaded signing key.
func signatureAddress(privateKey *ecdsa.PrivateKey) (string, error) {
	return signature.AddressFromPublicKey(signature.PublicKeyHex(&privateKey.PublicKey))
}
