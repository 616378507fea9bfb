package txpool_test

import (
	"testing"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/txpool"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func tx(id string, fee uint64) txtypes.Transaction {
	return txtypes.Transaction{ID: id, Type: txtypes.Transfer, Fee: fee, SenderID: "alice"}
}

func TestAddAndPromote(t *testing.T) {
	t.Log("Given the need to move a transaction through the pool's queues.")
	{
		p := txpool.New(txpool.Config{MaxPerQueue: 10})

		if err := p.Add(tx("t1", 5)); err != nil {
			t.Fatalf("\t%s\tShould be able to add a transaction: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to add a transaction.", success)

		if err := p.Add(tx("t1", 5)); err == nil {
			t.Fatalf("\t%s\tShould reject a duplicate id.", failed)
		}
		t.Logf("\t%s\tShould reject a duplicate id.", success)

		if err := p.Promote("t1", txpool.Ready); err != nil {
			t.Fatalf("\t%s\tShould be able to promote to ready: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to promote to ready.", success)

		if p.Count(txpool.Ready) != 1 {
			t.Fatalf("\t%s\tShould have one ready transaction.", failed)
		}
		t.Logf("\t%s\tShould have one ready transaction.", success)
	}
}

func TestGetMergedTransactionListOrdersByFee(t *testing.T) {
	t.Log("Given a set of ready transactions with different fees.")
	{
		p := txpool.New(txpool.Config{MaxPerQueue: 10})

		for _, id := range []string{"low", "high", "mid"} {
			fee := map[string]uint64{"low": 1, "high": 100, "mid": 10}[id]
			if err := p.Add(tx(id, fee)); err != nil {
				t.Fatalf("\t%s\tShould be able to add %s: %v", failed, id, err)
			}
			if err := p.Promote(id, txpool.Ready); err != nil {
				t.Fatalf("\t%s\tShould be able to promote %s: %v", failed, id, err)
			}
		}
		t.Logf("\t%s\tShould be able to pool three ready transactions.", success)

		ordered := p.GetMergedTransactionList(false, -1)
		if len(ordered) != 3 {
			t.Fatalf("\t%s\tShould return all three transactions, got %d.", failed, len(ordered))
		}

		if ordered[0].ID != "high" || ordered[2].ID != "low" {
			t.Fatalf("\t%s\tShould order by fee-per-byte descending, got %v.", failed, []string{ordered[0].ID, ordered[1].ID, ordered[2].ID})
		}
		t.Logf("\t%s\tShould order ready transactions by fee-per-byte descending.", success)
	}
}

func TestReinsertPutsTransactionsInReady(t *testing.T) {
	t.Log("Given a deleted block's transactions needing reinsertion.")
	{
		p := txpool.New(txpool.Config{MaxPerQueue: 10})

		deleted := []txtypes.Transaction{tx("a", 1), tx("b", 1), tx("c", 1)}
		p.Reinsert(deleted)

		if p.Count(txpool.Ready) != 3 {
			t.Fatalf("\t%s\tShould have reinserted all transactions into ready.", failed)
		}
		t.Logf("\t%s\tShould have reinserted all transactions into ready.", success)

		for _, d := range deleted {
			if !p.Has(d.ID) {
				t.Fatalf("\t%s\tShould contain reinserted transaction %s.", failed, d.ID)
			}
		}
		t.Logf("\t%s\tShould contain every reinserted transaction by id.", success)
	}
}

func TestExpirePending(t *testing.T) {
	t.Log("Given a pending multisig transaction past its lifetime.")
	{
		p := txpool.New(txpool.Config{MaxPerQueue: 10})

		if err := p.Add(tx("stale", 1)); err != nil {
			t.Fatalf("\t%s\tShould be able to add: %v", failed, err)
		}
		if err := p.Promote("stale", txpool.Pending); err != nil {
			t.Fatalf("\t%s\tShould be able to promote to pending: %v", failed, err)
		}

		expired := p.ExpirePending(-time.Second)
		if len(expired) != 1 || expired[0] != "stale" {
			t.Fatalf("\t%s\tShould expire the stale pending transaction, got %v.", failed, expired)
		}
		t.Logf("\t%s\tShould expire the stale pending transaction.", success)

		if p.Has("stale") {
			t.Fatalf("\t%s\tShould have removed the expired transaction from the pool.", failed)
		}
		t.Logf("\t%s\tShould have removed the expired transaction from the pool.", success)
	}
}
