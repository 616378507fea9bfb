package signature_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

func Test_Signing(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("should be able to load a private key: %s", err)
	}

	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("should be able to sign data: %s", err)
	}

	pubKeyHex := signature.PublicKeyHex(&pk.PublicKey)

	if err := signature.Verify(value, pubKeyHex, sig); err != nil {
		t.Fatalf("should be able to verify the signature: %s", err)
	}

	addr, err := signature.AddressFromPublicKey(pubKeyHex)
	if err != nil {
		t.Fatalf("should be able to derive an address: %s", err)
	}
	if addr == "" {
		t.Fatalf("should get back a non-empty address")
	}
}

func Test_VerifyRejectsTamperedValue(t *testing.T) {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("should be able to load a private key: %s", err)
	}

	value := struct{ Name string }{Name: "Bill"}
	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("should be able to sign data: %s", err)
	}

	pubKeyHex := signature.PublicKeyHex(&pk.PublicKey)
	tampered := struct{ Name string }{Name: "Jill"}

	if err := signature.Verify(tampered, pubKeyHex, sig); err == nil {
		t.Fatalf("should reject a signature over a different value")
	}
}

func Test_HashIsDeterministic(t *testing.T) {
	value := struct{ Name string }{Name: "Bill"}

	h1, err := signature.Hash(value)
	if err != nil {
		t.Fatalf("should be able to hash: %s", err)
	}

	h2, err := signature.Hash(value)
	if err != nil {
		t.Fatalf("should be able to hash: %s", err)
	}

	if h1 != h2 {
		t.Fatalf("hash should be deterministic: got %s and %s", h1, h2)
	}
}

func Test_MnemonicRoundTrip(t *testing.T) {
	mnemonic, err := signature.NewMnemonic()
	if err != nil {
		t.Fatalf("should be able to generate a mnemonic: %s", err)
	}

	key1, err := signature.KeyFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("should be able to derive a key: %s", err)
	}

	key2, err := signature.KeyFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("should be able to derive a key: %s", err)
	}

	if signature.PublicKeyHex(&key1.PublicKey) != signature.PublicKeyHex(&key2.PublicKey) {
		t.Fatalf("deriving from the same mnemonic twice should yield the same key")
	}
}

func Test_EncryptSecretRoundTrip(t *testing.T) {
	secret, err := signature.EncryptSecret("correct horse battery staple", "my-passphrase")
	if err != nil {
		t.Fatalf("should be able to encrypt: %s", err)
	}

	got, err := signature.DecryptSecret(secret, "my-passphrase")
	if err != nil {
		t.Fatalf("should be able to decrypt: %s", err)
	}

	if got != "correct horse battery staple" {
		t.Fatalf("got %q, want original plaintext", got)
	}

	if _, err := signature.DecryptSecret(secret, "wrong-passphrase"); err == nil {
		t.Fatalf("should reject the wrong passphrase")
	}
}
