// Package txtypes defines the eight tagged transaction variants (Transfer,
// SecondSignature, Delegate, Vote, Multisignature, Dapp, InTransfer,
// OutTransfer) and the shared signing/hashing machinery every variant uses.
//
// Generalized from a single-purpose block-transaction wrapping a plain
// transfer into eight tagged variants, the way separating "touching
// balances" from "everything else" suggests: each Type gets its own
// handler, and the ledger package's Apply dispatches through handlers
// keyed by Type.
package txtypes

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
)

// Type tags which of the eight transaction variants a Transaction is.
type Type uint8

const (
	Transfer         Type = 0
	SecondSignature  Type = 1
	Delegate         Type = 2
	Vote             Type = 3
	Multisignature   Type = 4
	Dapp             Type = 5
	InTransfer       Type = 6
	OutTransfer      Type = 7
)

// String names Type for logging.
func (t Type) String() string {
	switch t {
	case Transfer:
		return "Transfer"
	case SecondSignature:
		return "SecondSignature"
	case Delegate:
		return "Delegate"
	case Vote:
		return "Vote"
	case Multisignature:
		return "Multisignature"
	case Dapp:
		return "Dapp"
	case InTransfer:
		return "InTransfer"
	case OutTransfer:
		return "OutTransfer"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Asset is the type-specific payload a Transaction carries. Only the field
// matching Type is ever populated; json omits the rest.
type Asset struct {
	TransferData string           `json:"transferData,omitempty"`
	Signature    *SecondSigAsset  `json:"signature,omitempty"`
	Delegate     *DelegateAsset   `json:"delegate,omitempty"`
	Votes        []string         `json:"votes,omitempty"`
	Multisig     *MultisigAsset   `json:"multisignature,omitempty"`
	Dapp         *DappAsset       `json:"dapp,omitempty"`
	InTransfer   *InTransferAsset `json:"inTransfer,omitempty"`
	OutTransfer  *OutTransferAsset `json:"outTransfer,omitempty"`
}

// SecondSigAsset registers a second signing key on the sender's account.
type SecondSigAsset struct {
	PublicKey string `json:"publicKey"`
}

// DelegateAsset registers the sender as a forging-eligible delegate.
type DelegateAsset struct {
	Username string `json:"username"`
}

// MultisigAsset converts the sender's account into a multisig wallet.
type MultisigAsset struct {
	Min       int      `json:"min"`
	Lifetime  int      `json:"lifetime"`
	Keysgroup []string `json:"keysgroup"`
}

// DappAsset registers a side-application the sidechain hosts.
type DappAsset struct {
	Name     string `json:"name"`
	Category int    `json:"category"`
}

// InTransferAsset deposits funds into a registered dapp's balance.
type InTransferAsset struct {
	DappID string `json:"dappId"`
}

// OutTransferAsset withdraws funds from a dapp's balance to a recipient.
type OutTransferAsset struct {
	DappID        string `json:"dappId"`
	TransactionID string `json:"transactionId"`
}

// Transaction is the canonical, type-tagged transaction.
// Field order is fixed so Hash/Sign produce the same bytes across nodes.
type Transaction struct {
	ID              string   `json:"id" validate:"required"`
	Type            Type     `json:"type" validate:"max=7"`
	SenderPublicKey string   `json:"senderPublicKey" validate:"required"`
	SenderID        string   `json:"senderId" validate:"required"`
	RecipientID     string   `json:"recipientId,omitempty"`
	Amount          uint64   `json:"amount"`
	Fee             uint64   `json:"fee"`
	Timestamp       int64    `json:"timestamp" validate:"required"`
	Asset           Asset    `json:"asset"`
	Signature       string   `json:"signature" validate:"required"`
	SignSignature   string   `json:"signSignature,omitempty"`
	Signatures      []string `json:"signatures,omitempty"`
}

// signingFields is the subset of Transaction hashed and signed; ID,
// Signature, SignSignature and Signatures are excluded since they are
// either derived from, or layered on top of, this hash.
type signingFields struct {
	Type            Type   `json:"type"`
	SenderPublicKey string `json:"senderPublicKey"`
	SenderID        string `json:"senderId"`
	RecipientID     string `json:"recipientId,omitempty"`
	Amount          uint64 `json:"amount"`
	Fee             uint64 `json:"fee"`
	Timestamp       int64  `json:"timestamp"`
	Asset           Asset  `json:"asset"`
}

func (tx Transaction) signingPayload() signingFields {
	return signingFields{
		Type:            tx.Type,
		SenderPublicKey: tx.SenderPublicKey,
		SenderID:        tx.SenderID,
		RecipientID:     tx.RecipientID,
		Amount:          tx.Amount,
		Fee:             tx.Fee,
		Timestamp:       tx.Timestamp,
		Asset:           tx.Asset,
	}
}

// Hash computes the canonical id for tx: hash(canonicalBytes).
func (tx Transaction) Hash() (string, error) {
	return signature.Hash(tx.signingPayload())
}

// VerifySignature validates tx.Signature against tx.SenderPublicKey.
func (tx Transaction) VerifySignature() error {
	if err := signature.Verify(tx.signingPayload(), tx.SenderPublicKey, tx.Signature); err != nil {
		return chainerrors.New(chainerrors.Consensus, err)
	}
	return nil
}

// VerifySecondSignature validates tx.SignSignature against a sender's
// registered second public key, when one is set: if the sender has a
// second signature enabled, signSignature must be valid.
func (tx Transaction) VerifySecondSignature(secondPublicKey string) error {
	if secondPublicKey == "" {
		return nil
	}
	if tx.SignSignature == "" {
		return chainerrors.Newf(chainerrors.Validation, "transaction %s: missing required second signature", tx.ID)
	}
	if err := signature.Verify(tx.signingPayload(), secondPublicKey, tx.SignSignature); err != nil {
		return chainerrors.New(chainerrors.Consensus, err)
	}
	return nil
}

// VerifyMultisignatures checks that at least min of keysgroup's members
// produced a valid signature in tx.Signatures.
func (tx Transaction) VerifyMultisignatures(keysgroup []string, min int) error {
	if len(keysgroup) == 0 {
		return nil
	}

	payload := tx.signingPayload()
	matched := 0
	for _, memberKey := range keysgroup {
		for _, sig := range tx.Signatures {
			if signature.Verify(payload, memberKey, sig) == nil {
				matched++
				break
			}
		}
	}

	if matched < min {
		return chainerrors.Newf(chainerrors.Consensus, "transaction %s: %d of %d required multisig signatures present", tx.ID, matched, min)
	}

	return nil
}

// SignerAddresses resolves each entry in tx.Signatures to the member
// public key that produced it, for a sanitized view of a multisig
// transaction. An unresolved signature yields an empty signerAddress.
func (tx Transaction) SignerAddresses(keysgroup []string) []SignatureView {
	payload := tx.signingPayload()
	views := make([]SignatureView, 0, len(tx.Signatures))

	for _, sig := range tx.Signatures {
		view := SignatureView{Signature: sig}
		for _, memberKey := range keysgroup {
			if signature.Verify(payload, memberKey, sig) == nil {
				if addr, err := signature.AddressFromPublicKey(memberKey); err == nil {
					view.SignerAddress = addr
				}
				break
			}
		}
		views = append(views, view)
	}

	return views
}

// SignatureView is one entry of the sanitized multi-sig signatures list.
type SignatureView struct {
	SignerAddress string `json:"signerAddress"`
	Signature     string `json:"signature"`
}

// ValidateAsset checks that tx.Asset carries the payload its Type expects
// and nothing else.
func (tx Transaction) ValidateAsset() error {
	has := func(n int) bool { return n > 0 }

	count := 0
	if tx.Asset.Signature != nil {
		count++
	}
	if tx.Asset.Delegate != nil {
		count++
	}
	if has(len(tx.Asset.Votes)) {
		count++
	}
	if tx.Asset.Multisig != nil {
		count++
	}
	if tx.Asset.Dapp != nil {
		count++
	}
	if tx.Asset.InTransfer != nil {
		count++
	}
	if tx.Asset.OutTransfer != nil {
		count++
	}

	switch tx.Type {
	case Transfer:
		if count != 0 {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: transfer must carry no typed asset", tx.ID)
		}
	case SecondSignature:
		if tx.Asset.Signature == nil || tx.Asset.Signature.PublicKey == "" {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: second-signature asset missing publicKey", tx.ID)
		}
	case Delegate:
		if tx.Asset.Delegate == nil || tx.Asset.Delegate.Username == "" {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: delegate asset missing username", tx.ID)
		}
	case Vote:
		if len(tx.Asset.Votes) == 0 {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: vote asset has no votes", tx.ID)
		}
	case Multisignature:
		if tx.Asset.Multisig == nil || len(tx.Asset.Multisig.Keysgroup) == 0 || tx.Asset.Multisig.Min <= 0 {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: multisignature asset invalid", tx.ID)
		}
		if tx.Asset.Multisig.Min > len(tx.Asset.Multisig.Keysgroup) {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: multisig min exceeds keysgroup size", tx.ID)
		}
	case Dapp:
		if tx.Asset.Dapp == nil || tx.Asset.Dapp.Name == "" {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: dapp asset missing name", tx.ID)
		}
	case InTransfer:
		if tx.Asset.InTransfer == nil || tx.Asset.InTransfer.DappID == "" {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: inTransfer asset missing dappId", tx.ID)
		}
	case OutTransfer:
		if tx.Asset.OutTransfer == nil || tx.Asset.OutTransfer.DappID == "" {
			return chainerrors.Newf(chainerrors.Validation, "transaction %s: outTransfer asset missing dappId", tx.ID)
		}
	default:
		return chainerrors.Newf(chainerrors.Validation, "transaction %s: unknown type %d", tx.ID, uint8(tx.Type))
	}

	return nil
}

// Message decodes Asset.TransferData as UTF-8, if present, for a
// sanitized view of the transaction.
func (tx Transaction) Message() string {
	if tx.Asset.TransferData == "" {
		return ""
	}
	raw, err := hex.DecodeString(tx.Asset.TransferData)
	if err != nil {
		return tx.Asset.TransferData
	}
	return string(raw)
}

// MarshalCanonical is a convenience for call sites (store, transport) that
// need the wire bytes of a Transaction without re-deriving signingPayload.
func (tx Transaction) MarshalCanonical() ([]byte, error) {
	return json.Marshal(tx)
}
