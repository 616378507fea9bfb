package genesis_test

import (
	"testing"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/genesis"
)

const (
	success = "✓"
	failed  = "✗"
)

func Test_BlockIsFixedAtHeightOneWithIDG(t *testing.T) {
	t.Log("Given a genesis configuration.")
	{
		g := genesis.Genesis{Date: time.Unix(1000, 0), ChainID: 1, ActiveDelegates: 4}

		b := g.Block()

		if b.ID != "G" {
			t.Fatalf("\t%s\tShould fix the genesis block id to \"G\", got %q.", failed, b.ID)
		}
		t.Logf("\t%s\tShould fix the genesis block id to \"G\".", success)

		if b.Height != 1 {
			t.Fatalf("\t%s\tShould fix the genesis block height to 1, got %d.", failed, b.Height)
		}
		t.Logf("\t%s\tShould fix the genesis block height to 1.", success)

		if b.PreviousBlockID != "" {
			t.Fatalf("\t%s\tShould have no previous block id.", failed)
		}
		t.Logf("\t%s\tShould have no previous block id.", success)
	}
}

func Test_AccountsMergesDelegateAndBalanceByAddress(t *testing.T) {
	t.Log("Given a genesis with a delegate that also holds a starting balance.")
	{
		g := genesis.Genesis{
			Delegates: []genesis.Delegate{
				{Address: "ADDR1", PublicKey: "pub1", VoteWeight: 100},
			},
			Balances: map[string]uint64{
				"ADDR1": 5000,
				"ADDR2": 1000,
			},
		}

		accounts := g.Accounts()
		if len(accounts) != 2 {
			t.Fatalf("\t%s\tShould produce one account per distinct address, got %d.", failed, len(accounts))
		}
		t.Logf("\t%s\tShould produce one account per distinct address.", success)

		var addr1 *genesis.Account
		for i := range accounts {
			if accounts[i].Address == "ADDR1" {
				addr1 = &accounts[i]
			}
		}
		if addr1 == nil {
			t.Fatalf("\t%s\tShould include ADDR1.", failed)
		}

		if !addr1.IsDelegate || addr1.VoteWeight != 100 || addr1.Balance != 5000 {
			t.Fatalf("\t%s\tShould merge the delegate registration and balance onto one account, got %+v.", failed, addr1)
		}
		t.Logf("\t%s\tShould merge the delegate registration and balance onto one account.", success)
	}
}
