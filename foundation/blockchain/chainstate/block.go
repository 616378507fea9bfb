// Package chainstate is the Blocks state machine: the append-only ledger
// of committed blocks, the pipeline that validates and persists a new one,
// and the broadhash/consensus bookkeeping peers compare against.
//
// Shaped after a MineNewBlock/ProcessProposedBlock/validateUpdateDatabase
// sequence — validate, apply under a single lock, update lastBlock, emit
// an event string. Where a single-miner proof-of-work chain always
// appends (there are no forks to discard), receiveBlockFromNetwork here
// adds a fork tie-break: same height, lower timestamp (or same timestamp,
// lower id) wins and replaces the current tip — modeled after the same
// "validate then decide" shape, just with another branch.
package chainstate

import (
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
	"github.com/ardanlabs/dposchain/foundation/blockchain/slots"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// Block is the committed, content-addressed unit of the ledger.
type Block struct {
	ID                 string                `json:"id" validate:"required"`
	Height             uint64                `json:"height"`
	PreviousBlockID    string                `json:"previousBlockId"`
	Timestamp          int64                 `json:"timestamp" validate:"required"`
	GeneratorPublicKey string                `json:"generatorPublicKey" validate:"required"`
	BlockSignature     string                `json:"blockSignature" validate:"required"`
	PayloadHash        string                `json:"payloadHash"`
	PayloadLength      int                   `json:"payloadLength"`
	Transactions       []txtypes.Transaction `json:"transactions"`
}

// signingFields excludes ID and BlockSignature, the fields derived from
// or layered on top of this hash — mirroring txtypes.signingFields.
type signingFields struct {
	Height             uint64 `json:"height"`
	PreviousBlockID    string `json:"previousBlockId"`
	Timestamp          int64  `json:"timestamp"`
	GeneratorPublicKey string `json:"generatorPublicKey"`
	PayloadHash        string `json:"payloadHash"`
	PayloadLength      int    `json:"payloadLength"`
}

func (b Block) signingPayload() signingFields {
	return signingFields{
		Height:             b.Height,
		PreviousBlockID:    b.PreviousBlockID,
		Timestamp:          b.Timestamp,
		GeneratorPublicKey: b.GeneratorPublicKey,
		PayloadHash:        b.PayloadHash,
		PayloadLength:      b.PayloadLength,
	}
}

// Hash computes b's canonical id.
func (b Block) Hash() (string, error) {
	return signature.Hash(b.signingPayload())
}

// NumberOfTransactions, TotalAmount, TotalFee are derived from
// Transactions rather than stored redundantly on Block; Record converts
// to the persisted shape that does carry them, once.
func (b Block) NumberOfTransactions() int { return len(b.Transactions) }

func (b Block) TotalAmount() uint64 {
	var total uint64
	for _, tx := range b.Transactions {
		total += tx.Amount
	}
	return total
}

func (b Block) TotalFee() uint64 {
	var total uint64
	for _, tx := range b.Transactions {
		total += tx.Fee
	}
	return total
}

// computePayloadHash hashes the ordered transaction ids, the re-serialize-
// and-hash check a block append performs against PayloadHash.
func computePayloadHash(txs []txtypes.Transaction) (string, error) {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	return signature.Hash(ids)
}

// Record converts b into its persisted form for store.Store, given the
// reward already computed for its generator.
func (b Block) Record(reward uint64) store.BlockRecord {
	return store.BlockRecord{
		ID:                   b.ID,
		Height:               b.Height,
		PreviousBlockID:      b.PreviousBlockID,
		Timestamp:            b.Timestamp,
		GeneratorPublicKey:   b.GeneratorPublicKey,
		BlockSignature:       b.BlockSignature,
		PayloadHash:          b.PayloadHash,
		PayloadLength:        b.PayloadLength,
		NumberOfTransactions: b.NumberOfTransactions(),
		TotalAmount:          b.TotalAmount(),
		TotalFee:             b.TotalFee(),
		Reward:               reward,
	}
}

// VerifySignature checks b.BlockSignature against b.GeneratorPublicKey. The
// signed value is b itself with BlockSignature empty, the value a forger
// passes to signature.Sign before setting the signature.
func (b Block) VerifySignature() error {
	unsigned := b
	unsigned.BlockSignature = ""
	if err := signature.Verify(unsigned, b.GeneratorPublicKey, b.BlockSignature); err != nil {
		return chainerrors.New(chainerrors.Consensus, err)
	}
	return nil
}

// VerifyPayload re-serializes Transactions and checks the result against
// PayloadHash/PayloadLength, and checks both against their configured
// bounds.
func (b Block) VerifyPayload(maxTransactions, maxPayloadLength int) error {
	if len(b.Transactions) > maxTransactions {
		return chainerrors.Newf(chainerrors.Validation, "block %s: %d transactions exceeds limit %d", b.ID, len(b.Transactions), maxTransactions)
	}

	hash, err := computePayloadHash(b.Transactions)
	if err != nil {
		return chainerrors.New(chainerrors.Validation, err)
	}
	if hash != b.PayloadHash {
		return chainerrors.Newf(chainerrors.Validation, "block %s: payload hash mismatch", b.ID)
	}

	if b.PayloadLength > maxPayloadLength {
		return chainerrors.Newf(chainerrors.Validation, "block %s: payload length %d exceeds limit %d", b.ID, b.PayloadLength, maxPayloadLength)
	}

	return nil
}

// VerifySlot checks that Timestamp falls in a slot assigned to
// GeneratorPublicKey.
func (b Block) VerifySlot(clock slots.Config, delegateForSlot func(slot int64) string) error {
	slot := clock.GetSlotNumber(b.Timestamp)
	want := delegateForSlot(slot)
	if want != b.GeneratorPublicKey {
		return chainerrors.Newf(chainerrors.Consensus, "block %s: generator %s not assigned slot %d (expected %s)", b.ID, b.GeneratorPublicKey, slot, want)
	}
	return nil
}

// New builds a Block from its fields and computes ID/PayloadHash/
// PayloadLength, leaving BlockSignature for the caller (Forger) to set.
func New(height uint64, previousBlockID string, timestamp int64, generatorPublicKey string, txs []txtypes.Transaction) (Block, error) {
	payloadHash, err := computePayloadHash(txs)
	if err != nil {
		return Block{}, err
	}

	payloadLength := 0
	for _, tx := range txs {
		bytes, err := tx.MarshalCanonical()
		if err != nil {
			return Block{}, err
		}
		payloadLength += len(bytes)
	}

	b := Block{
		Height:             height,
		PreviousBlockID:    previousBlockID,
		Timestamp:          timestamp,
		GeneratorPublicKey: generatorPublicKey,
		PayloadHash:        payloadHash,
		PayloadLength:      payloadLength,
		Transactions:       txs,
	}

	id, err := b.Hash()
	if err != nil {
		return Block{}, err
	}
	b.ID = id

	return b, nil
}

// recomputeBroadhash hashes the last five block ids into a short
// fingerprint, newest first. ids[0] must be the new tip.
func recomputeBroadhash(ids []string) (string, error) {
	n := len(ids)
	if n > 5 {
		n = 5
	}
	return signature.Hash(ids[:n])
}
