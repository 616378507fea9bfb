package ledger_test

import (
	"testing"

	"github.com/ardanlabs/dposchain/foundation/blockchain/ledger"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// memAccounts is a tiny in-memory ledger.Accounts for exercising Apply
// without pulling in a full store.Store.
type memAccounts map[string]store.Account

func (m memAccounts) Get(address string) (store.Account, bool) {
	a, ok := m[address]
	return a, ok
}

func (m memAccounts) Put(a store.Account) {
	m[a.Address] = a
}

func Test_ApplyTransfer(t *testing.T) {
	accts := memAccounts{
		"alice": {Address: "alice", Balance: 1000},
		"bob":   {Address: "bob", Balance: 0},
	}

	tx := txtypes.Transaction{
		ID:          "t1",
		Type:        txtypes.Transfer,
		SenderID:    "alice",
		RecipientID: "bob",
		Amount:      100,
		Fee:         10,
	}

	t.Log("Given the need to apply a transfer transaction.")
	{
		if err := ledger.Apply(tx, accts); err != nil {
			t.Fatalf("\t%s\tShould be able to apply the transfer: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to apply the transfer.", success)

		if accts["alice"].Balance != 890 {
			t.Errorf("\t%s\tgot sender balance %d, want 890", failed, accts["alice"].Balance)
		} else {
			t.Logf("\t%s\tShould have debited the sender balance+fee.", success)
		}

		if accts["bob"].Balance != 100 {
			t.Errorf("\t%s\tgot recipient balance %d, want 100", failed, accts["bob"].Balance)
		} else {
			t.Logf("\t%s\tShould have credited the recipient balance.", success)
		}
	}
}

func Test_ApplyTransferInsufficientBalance(t *testing.T) {
	accts := memAccounts{
		"alice": {Address: "alice", Balance: 50},
	}

	tx := txtypes.Transaction{
		ID:          "t2",
		Type:        txtypes.Transfer,
		SenderID:    "alice",
		RecipientID: "bob",
		Amount:      100,
		Fee:         10,
	}

	t.Log("Given a transfer that exceeds the sender's balance.")
	{
		if err := ledger.Apply(tx, accts); err == nil {
			t.Fatalf("\t%s\tShould reject a transfer with insufficient balance.", failed)
		}
		t.Logf("\t%s\tShould reject a transfer with insufficient balance.", success)
	}
}

func Test_ApplyDelegateRegistration(t *testing.T) {
	accts := memAccounts{
		"alice": {Address: "alice", Balance: 1000},
	}

	tx := txtypes.Transaction{
		ID:       "t3",
		Type:     txtypes.Delegate,
		SenderID: "alice",
		Fee:      5,
		Asset:    txtypes.Asset{Delegate: &txtypes.DelegateAsset{Username: "alice-delegate"}},
	}

	t.Log("Given the need to register a delegate.")
	{
		if err := ledger.Apply(tx, accts); err != nil {
			t.Fatalf("\t%s\tShould be able to apply the registration: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to apply the registration.", success)

		if !accts["alice"].IsDelegate {
			t.Errorf("\t%s\tShould have flagged alice as a delegate.", failed)
		} else {
			t.Logf("\t%s\tShould have flagged alice as a delegate.", success)
		}

		if err := ledger.Apply(tx, accts); err == nil {
			t.Fatalf("\t%s\tShould reject registering the same delegate twice.", failed)
		}
		t.Logf("\t%s\tShould reject registering the same delegate twice.", success)
	}
}

func Test_ApplyVoteRejectsUnresolvablePublicKey(t *testing.T) {
	delegatePub := "deadbeef"
	delegateAddr := "DELEGATE-ADDR"

	accts := memAccounts{
		"alice":      {Address: "alice", Balance: 500},
		delegateAddr: {Address: delegateAddr, IsDelegate: true},
	}

	tx := txtypes.Transaction{
		ID:       "t4",
		Type:     txtypes.Vote,
		SenderID: "alice",
		Asset:    txtypes.Asset{Votes: []string{"+" + delegatePub}},
	}

	t.Log("Given the need to apply a vote transaction.")
	{
		// AddressFromPublicKey will fail on this fake hex value, so this
		// exercises the validation-error path rather than a real vote.
		err := ledger.Apply(tx, accts)
		if err == nil {
			t.Fatalf("\t%s\tShould reject a vote for an unresolvable public key.", failed)
		}
		t.Logf("\t%s\tShould reject a vote for an unresolvable public key.", success)
	}
}
