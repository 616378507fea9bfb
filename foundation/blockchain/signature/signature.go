// Package signature provides the cryptographic primitives the chain engine
// consumes as a library: hashing, signing, signature verification, and
// address derivation.
//
// Generalized away from an Ethereum-style [R|S|V] + recovery-id scheme: a
// transaction here always carries its own senderPublicKey, so recovering
// the signer from the signature is never required, only verifying that
// senderPublicKey produced signature over the transaction's hash. That
// lets Verify take the plain 64-byte [R|S] signature and the claimed public
// key instead of juggling recovery ids.
package signature

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash is the hash used for the block preceding genesis.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// Hash returns the hex-encoded Keccak-256 hash of value's canonical JSON
// encoding. Canonical here means: value is always a struct with explicit
// field order via struct tags, never a map, so two encodings of the same
// logical value always produce the same bytes.
func Hash(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	h := crypto.Keccak256(data)
	return hex.EncodeToString(h), nil
}

// MustHash is Hash without the error return, for call sites that already
// know value marshals cleanly (it is a type this package controls).
func MustHash(value any) string {
	h, err := Hash(value)
	if err != nil {
		return ZeroHash
	}
	return h
}

// Sign signs value's canonical hash with privateKey and returns the
// hex-encoded 64-byte [R|S] signature.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {
	h, err := Hash(value)
	if err != nil {
		return "", err
	}

	hashBytes, err := hex.DecodeString(h)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(hashBytes, privateKey)
	if err != nil {
		return "", err
	}

	// Drop the recovery byte; the verifier already has the public key.
	return hex.EncodeToString(sig[:64]), nil
}

// Verify checks that signatureHex is a valid signature over value's
// canonical hash by the holder of publicKeyHex.
func Verify(value any, publicKeyHex string, signatureHex string) error {
	h, err := Hash(value)
	if err != nil {
		return err
	}

	hashBytes, err := hex.DecodeString(h)
	if err != nil {
		return err
	}

	pubKeyBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return errors.New("signature: invalid public key encoding")
	}

	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return errors.New("signature: invalid signature encoding")
	}

	if len(sigBytes) == 65 {
		sigBytes = sigBytes[:64]
	}

	if !crypto.VerifySignature(pubKeyBytes, hashBytes, sigBytes) {
		return errors.New("signature: verification failed")
	}

	return nil
}

// AddressFromPublicKey derives the account address from a hex-encoded
// uncompressed public key, used as the senderId/recipientId of an account.
func AddressFromPublicKey(publicKeyHex string) (string, error) {
	pubKeyBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return "", err
	}

	pubKey, err := crypto.UnmarshalPubkey(pubKeyBytes)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

// PublicKeyHex hex-encodes an ECDSA public key in uncompressed form.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(pub))
}
