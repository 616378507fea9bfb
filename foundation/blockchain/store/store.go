// Package store defines the boundary to the relational persistence layer
// that sits outside the chain engine. The chain engine only ever depends
// on the Store interface; concrete adapters (Badger-backed for a running
// node, in-memory for tests) live alongside it so the module is runnable
// standalone without requiring an actual SQL server.
package store

import (
	"errors"

	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// BlockRecord is the persisted form of a committed block, matching a
// "blocks" table.
type BlockRecord struct {
	ID                  string
	Height              uint64
	PreviousBlockID     string
	Timestamp           int64
	GeneratorPublicKey  string
	BlockSignature      string
	PayloadHash         string
	PayloadLength       int
	NumberOfTransactions int
	TotalAmount         uint64
	TotalFee            uint64
	Reward              uint64
}

// TxRecord is the persisted form of a confirmed transaction, matching the
// "trs" table.
type TxRecord struct {
	ID        string
	BlockID   string
	Height    uint64
	Tx        txtypes.Transaction
}

// Account is the persisted form of an account, matching "mem_accounts".
// Addresses are stored case-insensitively and are compared UPPER-normalized
// by the Store implementation.
type Account struct {
	Address         string
	PublicKey       string
	Balance         uint64
	UnconfirmedBalance uint64
	IsDelegate      bool
	VoteWeight      uint64
	SecondPublicKey string
	Multimin        int
	Multilifetime   int
}

// MultisigMember is one row of "mem_accounts2multisignatures": a multisig
// wallet address paired with one member's public key.
type MultisigMember struct {
	WalletAddress string
	MemberPublicKey string
}

// RoundReward is one row of "rounds_rewards": the fee/reward paid to a
// delegate's public key for producing blocks in a round.
type RoundReward struct {
	Round           uint64
	DelegatePublicKey string
	Fees            uint64
	Reward          uint64
}

// Tx is a unit-of-work handle. All mutating Store operations that must be
// atomic (block append/delete plus the transactions and account deltas it
// carries) run inside one Tx so a persistence failure rolls back cleanly.
type Tx interface {
	PutBlock(b BlockRecord) error
	PutTx(t TxRecord) error
	DeleteBlock(id string) error
	DeleteTxsForBlock(blockID string) error
	PutAccount(a Account) error
	PutMultisigMember(m MultisigMember) error
	PutRoundReward(r RoundReward) error
	Commit() error
	Rollback() error
}

// Store is the typed entity-operation boundary the chain engine uses for
// all persistence. It is intentionally not a generic SQL executor: every
// query the chain needs is its own method here, parameterized by Go
// values, with fixed statement text and no runtime string concatenation.
type Store interface {
	Begin() (Tx, error)

	GetBlockByID(id string) (BlockRecord, error)
	GetBlockByHeight(height uint64) (BlockRecord, error)
	GetLastBlock() (BlockRecord, error)
	GetBlocksAfter(lastID string, limit int) ([]BlockRecord, error)
	GetBlocksBetweenHeights(fromHeight, toHeight uint64, limit int) ([]BlockRecord, error)
	GetBlockAtOrBeforeTimestamp(timestamp int64) (BlockRecord, error)
	FindCommonBlock(ids []string) (BlockRecord, error)
	MaxHeight() (uint64, error)

	GetTxByID(id string) (TxRecord, error)
	GetTxsForBlock(blockID string) ([]TxRecord, error)
	GetTxsBySender(address string, fromTimestamp int64, limit int) ([]TxRecord, error)
	GetTxsByRecipient(address string, fromTimestamp int64, limit int) ([]TxRecord, error)

	GetAccount(address string) (Account, error)
	PutAccountDirect(a Account) error
	GetMultisigMembers(walletAddress string) ([]MultisigMember, error)

	GetRoundRewards(round uint64) ([]RoundReward, error)
	TopVotedDelegates(limit int) ([]Account, error)

	Close() error
}
