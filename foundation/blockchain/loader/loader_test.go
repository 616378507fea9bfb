package loader_test

import (
	"context"
	"testing"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/loader"
	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

const (
	success = "✓"
	failed  = "✗"
)

type fakeNetwork struct {
	status      map[string]peer.Status
	pool        []txtypes.Transaction
	commonID    string
	blocksByCall [][]loader.Block
	call        int
}

func (f *fakeNetwork) RequestPeerStatus(_ context.Context, p peer.Peer) (peer.Status, error) {
	return f.status[p.Host], nil
}

func (f *fakeNetwork) RequestPeerPool(context.Context, peer.Peer) ([]txtypes.Transaction, error) {
	return f.pool, nil
}

func (f *fakeNetwork) FindCommonBlock(context.Context, peer.Peer, []string) (string, error) {
	return f.commonID, nil
}

func (f *fakeNetwork) FetchBlocks(context.Context, peer.Peer, string, int) ([]loader.Block, error) {
	if f.call >= len(f.blocksByCall) {
		return nil, nil
	}
	b := f.blocksByCall[f.call]
	f.call++
	return b, nil
}

type fakeChain struct {
	height      uint64
	lastID      string
	lastReceipt time.Time
	processed   []string
}

func (c *fakeChain) Height() uint64          { return c.height }
func (c *fakeChain) LastBlockID() string     { return c.lastID }
func (c *fakeChain) LastReceipt() time.Time  { return c.lastReceipt }
func (c *fakeChain) ProcessBlock(_ context.Context, b loader.Block, _ bool) error {
	c.processed = append(c.processed, b.ID)
	c.lastID = b.ID
	c.height = b.Height
	return nil
}

type fakePool struct {
	added []string
}

func (p *fakePool) Add(tx txtypes.Transaction) error {
	p.added = append(p.added, tx.ID)
	return nil
}

func TestLoadUnconfirmedTransactions(t *testing.T) {
	t.Log("Given the need to pull the shared pool from a peer on startup.")
	{
		peers := peer.NewSet()
		peers.Add(peer.New("forward"))

		net := &fakeNetwork{pool: []txtypes.Transaction{{ID: "t1"}, {ID: "t2"}}}
		chain := &fakeChain{lastReceipt: time.Now()}
		pool := &fakePool{}

		l := loader.New(loader.Config{}, net, chain, pool, peers)

		if err := l.LoadUnconfirmedTransactions(context.Background(), "self"); err != nil {
			t.Fatalf("\t%s\tShould be able to load unconfirmed transactions: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to load unconfirmed transactions.", success)

		if len(pool.added) != 2 {
			t.Fatalf("\t%s\tShould have added both pooled transactions, got %d.", failed, len(pool.added))
		}
		t.Logf("\t%s\tShould have added both pooled transactions.", success)
	}
}

func TestSyncFetchesForwardAndStops(t *testing.T) {
	t.Log("Given a peer ahead of this node with two batches of blocks.")
	{
		peers := peer.NewSet()
		peers.Add(peer.New("forward"))

		net := &fakeNetwork{
			status:   map[string]peer.Status{"forward": {Height: 5}},
			commonID: "g",
			blocksByCall: [][]loader.Block{
				{{ID: "b1", Height: 2}, {ID: "b2", Height: 3}},
				{{ID: "b3", Height: 4}},
				{},
			},
		}
		chain := &fakeChain{height: 1, lastID: "g", lastReceipt: time.Now().Add(-time.Hour)}
		pool := &fakePool{}

		l := loader.New(loader.Config{BlockReceiptTimeout: time.Second}, net, chain, pool, peers)

		if err := l.Sync(context.Background(), "self", []string{"g"}); err != nil {
			t.Fatalf("\t%s\tShould be able to sync: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to sync.", success)

		if len(chain.processed) != 3 {
			t.Fatalf("\t%s\tShould have processed 3 blocks, got %d: %v", failed, len(chain.processed), chain.processed)
		}
		t.Logf("\t%s\tShould have processed every fetched block across batches.", success)

		if chain.lastID != "b3" {
			t.Fatalf("\t%s\tShould have advanced the tip to the last fetched block, got %s.", failed, chain.lastID)
		}
		t.Logf("\t%s\tShould have advanced the tip to the last fetched block.", success)
	}
}

func TestMaybeSyncSkipsWhenNotStale(t *testing.T) {
	t.Log("Given a chain that received a block recently.")
	{
		peers := peer.NewSet()
		net := &fakeNetwork{}
		chain := &fakeChain{lastReceipt: time.Now()}
		pool := &fakePool{}

		l := loader.New(loader.Config{BlockReceiptTimeout: time.Hour}, net, chain, pool, peers)

		l.MaybeSync(context.Background(), "self", nil)

		if len(chain.processed) != 0 {
			t.Fatalf("\t%s\tShould not have synced a fresh chain.", failed)
		}
		t.Logf("\t%s\tShould not have synced a fresh chain.", success)
	}
}
