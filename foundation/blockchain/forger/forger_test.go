package forger_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ardanlabs/dposchain/foundation/blockchain/bus"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainstate"
	"github.com/ardanlabs/dposchain/foundation/blockchain/forger"
	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
	"github.com/ardanlabs/dposchain/foundation/blockchain/slots"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txpool"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

const (
	success = "✓"
	failed  = "✗"
)

func Test_LoadDelegateDecryptsAndRegisters(t *testing.T) {
	t.Log("Given an encrypted delegate mnemonic.")
	{
		mnemonic, err := signature.NewMnemonic()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a mnemonic: %v", failed, err)
		}

		encrypted, err := signature.EncryptSecret(mnemonic, "correct horse")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encrypt the mnemonic: %v", failed, err)
		}

		wantKey, err := signature.KeyFromMnemonic(mnemonic, "")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to derive the key directly: %v", failed, err)
		}
		wantPublicKey := signature.PublicKeyHex(&wantKey.PublicKey)

		f := forger.New(forger.Config{ActiveDelegates: 4})

		publicKey, err := f.LoadDelegate(forger.Secret{Mnemonic: encrypted, Passphrase: "correct horse"})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the delegate: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to load the delegate.", success)

		if publicKey != wantPublicKey {
			t.Fatalf("\t%s\tShould derive the same public key as the direct derivation.", failed)
		}
		t.Logf("\t%s\tShould derive the same public key as the direct derivation.", success)

		found := false
		for _, k := range f.Delegates() {
			if k == publicKey {
				found = true
			}
		}
		if !found {
			t.Fatalf("\t%s\tShould list the loaded delegate.", failed)
		}
		t.Logf("\t%s\tShould list the loaded delegate.", success)
	}
}

func Test_LoadDelegateRejectsWrongPassphrase(t *testing.T) {
	t.Log("Given an encrypted delegate mnemonic and the wrong passphrase.")
	{
		mnemonic, err := signature.NewMnemonic()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a mnemonic: %v", failed, err)
		}

		encrypted, err := signature.EncryptSecret(mnemonic, "correct horse")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encrypt the mnemonic: %v", failed, err)
		}

		f := forger.New(forger.Config{ActiveDelegates: 4})

		if _, err := f.LoadDelegate(forger.Secret{Mnemonic: encrypted, Passphrase: "wrong passphrase"}); err == nil {
			t.Fatalf("\t%s\tShould reject the wrong passphrase.", failed)
		}
		t.Logf("\t%s\tShould reject the wrong passphrase.", success)
	}
}

// buildSingleDelegateChain wires a chain with exactly one voted delegate,
// derived from mnemonic, and loads its genesis block. With only one
// candidate, every round's schedule resolves every slot to that delegate,
// so ForceForge always finds it selected.
func buildSingleDelegateChain(t *testing.T, mnemonic string) (*chainstate.Chain, *txpool.Pool, slots.Config, store.Store, string) {
	t.Helper()

	s := store.NewMemory()

	delegateKey, err := signature.KeyFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to derive the delegate key: %v", failed, err)
	}
	delegatePublicKey := signature.PublicKeyHex(&delegateKey.PublicKey)
	delegateAddress, err := signature.AddressFromPublicKey(delegatePublicKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to derive the delegate address: %v", failed, err)
	}

	if err := s.PutAccountDirect(store.Account{
		Address:    delegateAddress,
		PublicKey:  delegatePublicKey,
		IsDelegate: true,
		VoteWeight: 100,
	}); err != nil {
		t.Fatalf("\t%s\tShould be able to seed the delegate account: %v", failed, err)
	}

	genesis, err := chainstate.New(1, "", 0, delegatePublicKey, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build genesis: %v", failed, err)
	}
	sig, err := signature.Sign(genesis, delegateKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign genesis: %v", failed, err)
	}
	genesis.BlockSignature = sig

	clock := slots.New(time.Unix(0, 0), 10*time.Second, 4)
	pool := txpool.New(txpool.Config{})

	chain := chainstate.NewChain(chainstate.Config{
		ModuleAlias:      "TEST",
		ActiveDelegates:  4,
		MaxTransactions:  25,
		MaxPayloadLength: 1 << 20,
		Clock:            clock,
		Store:            s,
		Pool:             pool,
		Bus:              bus.New(),
	})

	if err := chain.LoadBlockChain(context.Background(), genesis, 0); err != nil {
		t.Fatalf("\t%s\tShould be able to load the chain: %v", failed, err)
	}

	return chain, pool, clock, s, delegateAddress
}

func addReadyTransfer(t *testing.T, s store.Store, pool *txpool.Pool, recipient string) {
	t.Helper()

	senderKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a sender key: %v", failed, err)
	}
	senderPublicKey := signature.PublicKeyHex(&senderKey.PublicKey)
	senderAddress, err := signature.AddressFromPublicKey(senderPublicKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to derive the sender address: %v", failed, err)
	}

	if err := s.PutAccountDirect(store.Account{Address: senderAddress, Balance: 1000}); err != nil {
		t.Fatalf("\t%s\tShould be able to seed the sender account: %v", failed, err)
	}

	tx := txtypes.Transaction{
		Type:            txtypes.Transfer,
		SenderPublicKey: senderPublicKey,
		SenderID:        senderAddress,
		RecipientID:     recipient,
		Amount:          10,
		Fee:             1,
		Timestamp:       10,
	}
	id, err := tx.Hash()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to hash the transaction: %v", failed, err)
	}
	tx.ID = id

	txSig, err := signature.Sign(tx, senderKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
	}
	tx.Signature = txSig

	if err := pool.Add(tx); err != nil {
		t.Fatalf("\t%s\tShould be able to add the transaction to the pool: %v", failed, err)
	}
	if err := pool.Promote(tx.ID, txpool.Ready); err != nil {
		t.Fatalf("\t%s\tShould be able to promote the transaction to ready: %v", failed, err)
	}
}

func Test_ForceForgeCommitsBlockForSelectedDelegate(t *testing.T) {
	t.Log("Given a chain with one registered delegate and a ready transaction.")
	{
		mnemonic, err := signature.NewMnemonic()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a mnemonic: %v", failed, err)
		}

		chain, pool, clock, s, delegateAddress := buildSingleDelegateChain(t, mnemonic)
		addReadyTransfer(t, s, pool, delegateAddress)

		f := forger.New(forger.Config{
			ModuleAlias:     "TEST",
			ActiveDelegates: 4,
			MaxTransactions: 25,
			Clock:           clock,
			Chain:           chain,
			Pool:            pool,
			Store:           s,
		})

		encrypted, err := signature.EncryptSecret(mnemonic, "delegate pass")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encrypt the delegate mnemonic: %v", failed, err)
		}
		if _, err := f.LoadDelegate(forger.Secret{Mnemonic: encrypted, Passphrase: "delegate pass"}); err != nil {
			t.Fatalf("\t%s\tShould be able to load the delegate: %v", failed, err)
		}

		if err := f.ForceForge(context.Background()); err != nil {
			t.Fatalf("\t%s\tShould be able to forge a block for the selected delegate: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to forge a block for the selected delegate.", success)

		if chain.Height() != 2 {
			t.Fatalf("\t%s\tShould have advanced the chain to height 2, got %d.", failed, chain.Height())
		}
		t.Logf("\t%s\tShould have advanced the chain to height 2.", success)
	}
}

func Test_ForceForgeReturnsErrNotSelectedWithoutTheDelegateKey(t *testing.T) {
	t.Log("Given a chain whose delegate key this forger does not hold.")
	{
		mnemonic, err := signature.NewMnemonic()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a mnemonic: %v", failed, err)
		}

		chain, pool, clock, s, _ := buildSingleDelegateChain(t, mnemonic)

		f := forger.New(forger.Config{
			ModuleAlias:     "TEST",
			ActiveDelegates: 4,
			MaxTransactions: 25,
			Clock:           clock,
			Chain:           chain,
			Pool:            pool,
			Store:           s,
		})

		otherMnemonic, err := signature.NewMnemonic()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate an unrelated mnemonic: %v", failed, err)
		}
		encrypted, err := signature.EncryptSecret(otherMnemonic, "pass")
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encrypt the unrelated mnemonic: %v", failed, err)
		}
		if _, err := f.LoadDelegate(forger.Secret{Mnemonic: encrypted, Passphrase: "pass"}); err != nil {
			t.Fatalf("\t%s\tShould be able to load the unrelated delegate: %v", failed, err)
		}

		if err := f.ForceForge(context.Background()); err != forger.ErrNotSelected {
			t.Fatalf("\t%s\tShould report not selected, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould report not selected when holding an unrelated key.", success)
	}
}
