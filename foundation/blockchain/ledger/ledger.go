// Package ledger applies confirmed transactions to account state, one
// handler per txtypes.Type, in the ApplyTransaction shape of debiting the
// sender for amount+fee, crediting the recipient, and checking balance and
// ordering invariants before any mutation commits.
//
// A dispatch table here replaces a single apply function because eight
// transaction variants exist instead of one; each variant's handler only
// ever touches the accounts it is defined over (Transfer touches
// sender+recipient, Delegate touches only the sender, and so on),
// capturing the accounts it needs, checking invariants, then writing.
package ledger

import (
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// Accounts is the narrow account-lookup/mutation surface Apply needs. The
// chain engine's in-flight state and store.Store both satisfy shapes
// compatible with this, via small adapters.
type Accounts interface {
	Get(address string) (store.Account, bool)
	Put(store.Account)
}

// handler validates and applies one transaction type against accts,
// returning an error if the transaction cannot be applied.
type handler func(tx txtypes.Transaction, accts Accounts) error

var handlers = map[txtypes.Type]handler{
	txtypes.Transfer:        applyTransfer,
	txtypes.SecondSignature: applySecondSignature,
	txtypes.Delegate:        applyDelegate,
	txtypes.Vote:            applyVote,
	txtypes.Multisignature:  applyMultisignature,
	txtypes.Dapp:            applyDapp,
	txtypes.InTransfer:      applyInTransfer,
	txtypes.OutTransfer:     applyOutTransfer,
}

// Apply validates tx's business-logic invariants against accts and, if
// they hold, mutates the affected accounts. The caller is responsible for
// having already verified tx's signature(s) (txtypes.Transaction.Verify*)
// before calling Apply; Apply only concerns itself with account state.
func Apply(tx txtypes.Transaction, accts Accounts) error {
	h, ok := handlers[tx.Type]
	if !ok {
		return chainerrors.Newf(chainerrors.Validation, "ledger: no handler for transaction type %s", tx.Type)
	}
	return h(tx, accts)
}

func debitSenderForFee(tx txtypes.Transaction, accts Accounts) (store.Account, error) {
	sender, ok := accts.Get(tx.SenderID)
	if !ok {
		return store.Account{}, chainerrors.Newf(chainerrors.State, "ledger: unknown sender %s", tx.SenderID)
	}

	total := tx.Amount + tx.Fee
	if sender.Balance < total {
		return store.Account{}, chainerrors.Newf(chainerrors.State, "ledger: insufficient balance for %s: have %d, need %d", tx.SenderID, sender.Balance, total)
	}

	sender.Balance -= total
	return sender, nil
}

func applyTransfer(tx txtypes.Transaction, accts Accounts) error {
	if tx.RecipientID == "" {
		return chainerrors.Newf(chainerrors.Validation, "transaction %s: transfer requires a recipient", tx.ID)
	}

	sender, err := debitSenderForFee(tx, accts)
	if err != nil {
		return err
	}

	recipient, _ := accts.Get(tx.RecipientID)
	recipient.Address = tx.RecipientID
	recipient.Balance += tx.Amount

	accts.Put(sender)
	accts.Put(recipient)
	return nil
}

func applySecondSignature(tx txtypes.Transaction, accts Accounts) error {
	sender, err := debitSenderForFee(tx, accts)
	if err != nil {
		return err
	}

	if sender.SecondPublicKey != "" {
		return chainerrors.Newf(chainerrors.State, "transaction %s: second signature already registered for %s", tx.ID, tx.SenderID)
	}

	sender.SecondPublicKey = tx.Asset.Signature.PublicKey
	accts.Put(sender)
	return nil
}

func applyDelegate(tx txtypes.Transaction, accts Accounts) error {
	sender, err := debitSenderForFee(tx, accts)
	if err != nil {
		return err
	}

	if sender.IsDelegate {
		return chainerrors.Newf(chainerrors.State, "transaction %s: %s is already a delegate", tx.ID, tx.SenderID)
	}

	sender.IsDelegate = true
	accts.Put(sender)
	return nil
}

func applyVote(tx txtypes.Transaction, accts Accounts) error {
	sender, err := debitSenderForFee(tx, accts)
	if err != nil {
		return err
	}

	for _, voteEntry := range tx.Asset.Votes {
		delegatePubKey, upvote := voteEntry, true
		if len(voteEntry) > 0 && (voteEntry[0] == '+' || voteEntry[0] == '-') {
			upvote = voteEntry[0] == '+'
			delegatePubKey = voteEntry[1:]
		}

		delegateAddr, err := signature.AddressFromPublicKey(delegatePubKey)
		if err != nil {
			return chainerrors.New(chainerrors.Validation, err)
		}

		delegate, ok := accts.Get(delegateAddr)
		if !ok || !delegate.IsDelegate {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: vote target %s is not a delegate", tx.ID, delegateAddr)
		}

		if upvote {
			delegate.VoteWeight += sender.Balance
		} else if delegate.VoteWeight >= sender.Balance {
			delegate.VoteWeight -= sender.Balance
		} else {
			delegate.VoteWeight = 0
		}
		accts.Put(delegate)
	}

	accts.Put(sender)
	return nil
}

func applyMultisignature(tx txtypes.Transaction, accts Accounts) error {
	sender, err := debitSenderForFee(tx, accts)
	if err != nil {
		return err
	}

	if sender.Multimin != 0 {
		return chainerrors.Newf(chainerrors.State, "transaction %s: %s is already a multisig wallet", tx.ID, tx.SenderID)
	}

	sender.Multimin = tx.Asset.Multisig.Min
	sender.Multilifetime = tx.Asset.Multisig.Lifetime
	accts.Put(sender)
	return nil
}

func applyDapp(tx txtypes.Transaction, accts Accounts) error {
	sender, err := debitSenderForFee(tx, accts)
	if err != nil {
		return err
	}
	accts.Put(sender)
	return nil
}

func applyInTransfer(tx txtypes.Transaction, accts Accounts) error {
	sender, err := debitSenderForFee(tx, accts)
	if err != nil {
		return err
	}

	dapp, _ := accts.Get(tx.Asset.InTransfer.DappID)
	dapp.Address = tx.Asset.InTransfer.DappID
	dapp.Balance += tx.Amount

	accts.Put(sender)
	accts.Put(dapp)
	return nil
}

func applyOutTransfer(tx txtypes.Transaction, accts Accounts) error {
	if tx.RecipientID == "" {
		return chainerrors.Newf(chainerrors.Validation, "transaction %s: outTransfer requires a recipient", tx.ID)
	}

	// The withdrawn amount comes out of the dapp's balance, not the
	// sender's; the sender only ever pays the fee for requesting it.
	sender, ok := accts.Get(tx.SenderID)
	if !ok {
		return chainerrors.Newf(chainerrors.State, "ledger: unknown sender %s", tx.SenderID)
	}
	if sender.Balance < tx.Fee {
		return chainerrors.Newf(chainerrors.State, "ledger: insufficient balance for %s: have %d, need %d", tx.SenderID, sender.Balance, tx.Fee)
	}
	sender.Balance -= tx.Fee

	dapp, ok := accts.Get(tx.Asset.OutTransfer.DappID)
	if !ok || dapp.Balance < tx.Amount {
		return chainerrors.Newf(chainerrors.State, "transaction %s: dapp %s has insufficient balance", tx.ID, tx.Asset.OutTransfer.DappID)
	}
	dapp.Balance -= tx.Amount

	recipient, _ := accts.Get(tx.RecipientID)
	recipient.Address = tx.RecipientID
	recipient.Balance += tx.Amount

	accts.Put(dapp)
	accts.Put(recipient)
	accts.Put(sender)
	return nil
}
