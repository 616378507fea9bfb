package signature

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

// EncryptedSecret is the at-rest encoding of a delegate's mnemonic or raw
// private key, written to the secrets file a forger loads on startup.
// Scrypt stretches the operator's passphrase into an AES-256-GCM key; Salt
// and Nonce are random per encryption, so the same passphrase never
// produces the same ciphertext twice.
type EncryptedSecret struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// EncryptSecret encrypts plaintext (a mnemonic phrase or hex private key)
// under passphrase.
func EncryptSecret(plaintext, passphrase string) (EncryptedSecret, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return EncryptedSecret{}, err
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return EncryptedSecret{}, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return EncryptedSecret{}, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return EncryptedSecret{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedSecret{}, err
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	return EncryptedSecret{
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
	}, nil
}

// DecryptSecret reverses EncryptSecret given the same passphrase. A wrong
// passphrase fails GCM authentication rather than returning garbage.
func DecryptSecret(secret EncryptedSecret, passphrase string) (string, error) {
	salt, err := hex.DecodeString(secret.Salt)
	if err != nil {
		return "", err
	}

	nonce, err := hex.DecodeString(secret.Nonce)
	if err != nil {
		return "", err
	}

	ciphertext, err := hex.DecodeString(secret.Ciphertext)
	if err != nil {
		return "", err
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(nonce) != gcm.NonceSize() {
		return "", errors.New("signature: invalid nonce length")
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("signature: decryption failed, wrong passphrase")
	}

	return string(plaintext), nil
}
