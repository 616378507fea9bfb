package chainstate_test

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ardanlabs/dposchain/foundation/blockchain/bus"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainstate"
	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
	"github.com/ardanlabs/dposchain/foundation/blockchain/slots"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txpool"
)

const (
	success = "✓"
	failed  = "✗"
)

func signedBlock(t *testing.T, key *ecdsa.PrivateKey, height uint64, previousID string, timestamp int64) chainstate.Block {
	t.Helper()

	pubKey := signature.PublicKeyHex(&key.PublicKey)

	b, err := chainstate.New(height, previousID, timestamp, pubKey, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a block: %v", failed, err)
	}

	sig, err := signature.Sign(b, key)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a block: %v", failed, err)
	}
	b.BlockSignature = sig

	return b
}

func newChain(t *testing.T, s store.Store) *chainstate.Chain {
	t.Helper()

	return chainstate.NewChain(chainstate.Config{
		ModuleAlias:      "TEST",
		ActiveDelegates:  4,
		MaxTransactions:  25,
		MaxPayloadLength: 1 << 20,
		Clock:            slots.New(time.Unix(0, 0), 10*time.Second, 4),
		Store:            s,
		Pool:             txpool.New(txpool.Config{}),
		Bus:              bus.New(),
	})
}

func Test_LoadBlockChainAppliesGenesis(t *testing.T) {
	t.Log("Given the need to boot a chain with no stored blocks.")
	{
		s := store.NewMemory()

		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
		}

		genesis := signedBlock(t, key, 1, "", 0)
		c := newChain(t, s)

		if err := c.LoadBlockChain(context.Background(), genesis, 0); err != nil {
			t.Fatalf("\t%s\tShould be able to load the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to load the chain.", success)

		if c.Height() != 1 {
			t.Fatalf("\t%s\tShould have height 1, got %d.", failed, c.Height())
		}
		t.Logf("\t%s\tShould have height 1 after genesis.", success)

		if c.Mode() != chainstate.ModeSynced {
			t.Fatalf("\t%s\tShould be synced after loading, got %s.", failed, c.Mode())
		}
		t.Logf("\t%s\tShould be synced after loading.", success)
	}
}

func Test_AppendBlockAdvancesTip(t *testing.T) {
	t.Log("Given a loaded chain and a validly signed next block.")
	{
		s := store.NewMemory()

		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
		}

		genesis := signedBlock(t, key, 1, "", 0)
		c := newChain(t, s)

		if err := c.LoadBlockChain(context.Background(), genesis, 0); err != nil {
			t.Fatalf("\t%s\tShould be able to load the chain: %v", failed, err)
		}

		next := signedBlock(t, key, 2, genesis.ID, 10)

		if err := c.ReceiveBlockFromNetwork(context.Background(), next, false); err != nil {
			t.Fatalf("\t%s\tShould be able to append a valid block: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to append a valid block.", success)

		if c.LastBlockID() != next.ID {
			t.Fatalf("\t%s\tShould have advanced the tip to the new block.", failed)
		}
		t.Logf("\t%s\tShould have advanced the tip to the new block.", success)

		if c.Height() != 2 {
			t.Fatalf("\t%s\tShould have height 2, got %d.", failed, c.Height())
		}
		t.Logf("\t%s\tShould have height 2.", success)
	}
}

func Test_ReceiveBlockFromNetworkTieBreak(t *testing.T) {
	t.Log("Given two competing blocks at the same height.")
	{
		s := store.NewMemory()

		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
		}

		genesis := signedBlock(t, key, 1, "", 0)
		c := newChain(t, s)

		if err := c.LoadBlockChain(context.Background(), genesis, 0); err != nil {
			t.Fatalf("\t%s\tShould be able to load the chain: %v", failed, err)
		}

		earlier := signedBlock(t, key, 2, genesis.ID, 100)
		later := signedBlock(t, key, 2, genesis.ID, 200)

		if err := c.ReceiveBlockFromNetwork(context.Background(), later, false); err != nil {
			t.Fatalf("\t%s\tShould accept the first competing block: %v", failed, err)
		}
		t.Logf("\t%s\tShould accept the first competing block.", success)

		if err := c.ReceiveBlockFromNetwork(context.Background(), earlier, false); err != nil {
			t.Fatalf("\t%s\tShould accept the earlier-timestamped block over the later tip: %v", failed, err)
		}
		t.Logf("\t%s\tShould replace the later tip with the earlier-timestamped competitor.", success)

		if c.LastBlockID() != earlier.ID {
			t.Fatalf("\t%s\tShould have the earlier block as tip, got %s want %s.", failed, c.LastBlockID(), earlier.ID)
		}
		t.Logf("\t%s\tShould have the earlier block as tip.", success)
	}
}

func Test_ReceiveBlockFromNetworkRejectsNonContiguous(t *testing.T) {
	t.Log("Given a block that does not chain off the current tip.")
	{
		s := store.NewMemory()

		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate a key: %v", failed, err)
		}

		genesis := signedBlock(t, key, 1, "", 0)
		c := newChain(t, s)

		if err := c.LoadBlockChain(context.Background(), genesis, 0); err != nil {
			t.Fatalf("\t%s\tShould be able to load the chain: %v", failed, err)
		}

		orphan := signedBlock(t, key, 5, "does-not-exist", 10)

		if err := c.ReceiveBlockFromNetwork(context.Background(), orphan, false); err == nil {
			t.Fatalf("\t%s\tShould reject a non-contiguous block.", failed)
		}
		t.Logf("\t%s\tShould reject a non-contiguous block.", success)
	}
}
