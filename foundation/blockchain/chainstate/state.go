package chainstate

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/bus"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/ledger"
	"github.com/ardanlabs/dposchain/foundation/blockchain/loader"
	"github.com/ardanlabs/dposchain/foundation/blockchain/sequence"
	"github.com/ardanlabs/dposchain/foundation/blockchain/slots"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txpool"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// Mode names the Blocks module's lifecycle state: loading, synced,
// syncing (transient, toggling back to synced), or rebuilding.
type Mode string

const (
	ModeLoading    Mode = "loading"
	ModeSynced     Mode = "synced"
	ModeSyncing    Mode = "syncing"
	ModeRebuilding Mode = "rebuilding"
)

// EventHandler mirrors the evHandler logging convention used throughout
// this module.
type EventHandler func(format string, args ...any)

// Config wires a Chain to its collaborators.
type Config struct {
	ModuleAlias         string
	ActiveDelegates     int
	MaxTransactions     int
	MaxPayloadLength    int
	Clock               slots.Config
	Store               store.Store
	Pool                *txpool.Pool
	Sequencer           *sequence.Sequence
	Bus                 *bus.Bus
	EvHandler           EventHandler
	DelegateForSlot     func(slot int64) string
}

// Chain is the Blocks state machine: the single owner of lastBlock,
// lastReceipt and broadhash, mutated only through tasks run on Sequencer.
type Chain struct {
	cfg Config

	mu          sync.RWMutex
	mode        Mode
	lastBlock   Block
	lastReceipt time.Time
	broadhash   string
	recentIDs   []string
	accounts    accountCache
}

// NewChain constructs a Chain in the loading state.
func NewChain(cfg Config) *Chain {
	if cfg.EvHandler == nil {
		cfg.EvHandler = func(string, ...any) {}
	}

	return &Chain{
		cfg:      cfg,
		mode:     ModeLoading,
		accounts: newAccountCache(cfg.Store),
	}
}

// Height returns the last committed block's height.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastBlock.Height
}

// LastBlockID returns the last committed block's id.
func (c *Chain) LastBlockID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastBlock.ID
}

// LastBlock returns a copy of the last committed block.
func (c *Chain) LastBlock() Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastBlock
}

// LastReceipt returns when the last block was accepted, used by
// loader.IsStale.
func (c *Chain) LastReceipt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastReceipt
}

// RecentBlockIDs returns the IDs of the last five committed blocks,
// newest first, for the orchestrator to offer a peer during
// loader.Loader.MaybeSync's common-block search.
func (c *Chain) RecentBlockIDs() []string {
	return c.recentIDsCopy()
}

// Broadhash returns the current broadhash fingerprint.
func (c *Chain) Broadhash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.broadhash
}

// Mode returns the current lifecycle mode.
func (c *Chain) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

func (c *Chain) setMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

// IsStale reports whether no block has been accepted for longer than
// timeout.
func (c *Chain) IsStale(timeout time.Duration) bool {
	return time.Since(c.LastReceipt()) > timeout
}

// LoadBlockChain initializes the chain from the store: persisting genesis
// on an empty store, or loading the existing tip otherwise. rebuildUpToRound,
// when nonzero, replays from genesis applying blocks one by one until that
// round boundary is reached and returns with the chain in ModeRebuilding,
// signalling the caller to shut down.
func (c *Chain) LoadBlockChain(ctx context.Context, genesisBlock Block, rebuildUpToRound uint64) error {
	maxHeight, err := c.cfg.Store.MaxHeight()
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	if maxHeight == 0 {
		if err := c.applyGenesisBlock(genesisBlock); err != nil {
			return err
		}
	} else {
		if err := c.loadLatestFromStore(maxHeight); err != nil {
			return err
		}
	}

	if rebuildUpToRound > 0 {
		c.setMode(ModeRebuilding)
		if err := c.rebuildUpToRound(genesisBlock, rebuildUpToRound); err != nil {
			return err
		}
		return nil
	}

	c.setMode(ModeSynced)
	return nil
}

func (c *Chain) loadLatestFromStore(maxHeight uint64) error {
	rec, err := c.cfg.Store.GetBlockByHeight(maxHeight)
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	txs, err := c.cfg.Store.GetTxsForBlock(rec.ID)
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	block := blockFromRecord(rec, txs)

	recent, err := c.lastFiveIDs(block.ID)
	if err != nil {
		return err
	}
	broadhash, err := recomputeBroadhash(recent)
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	c.mu.Lock()
	c.lastBlock = block
	c.broadhash = broadhash
	c.recentIDs = recent
	c.lastReceipt = time.Now()
	c.mu.Unlock()

	return nil
}

func (c *Chain) lastFiveIDs(tipID string) ([]string, error) {
	ids := []string{tipID}
	cursor := tipID

	for len(ids) < 5 {
		rec, err := c.cfg.Store.GetBlockByID(cursor)
		if err != nil {
			break
		}
		if rec.PreviousBlockID == "" {
			break
		}
		ids = append(ids, rec.PreviousBlockID)
		cursor = rec.PreviousBlockID
	}

	return ids, nil
}

func (c *Chain) applyGenesisBlock(genesisBlock Block) error {
	if err := c.persistAndApply(genesisBlock, 0); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastBlock = genesisBlock
	c.recentIDs = []string{genesisBlock.ID}
	c.lastReceipt = time.Now()
	c.mu.Unlock()

	broadhash, err := recomputeBroadhash([]string{genesisBlock.ID})
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}
	c.mu.Lock()
	c.broadhash = broadhash
	c.mu.Unlock()

	return nil
}

// rebuildUpToRound replays from genesis, applying blocks one by one until
// the target round boundary, then stops; the caller is expected to shut
// down afterward, since rebuilding is a terminal state.
func (c *Chain) rebuildUpToRound(genesisBlock Block, targetRound uint64) error {
	maxHeight, err := c.cfg.Store.MaxHeight()
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	for height := uint64(1); height <= maxHeight; height++ {
		rec, err := c.cfg.Store.GetBlockByHeight(height)
		if err != nil {
			return chainerrors.New(chainerrors.Persistence, err)
		}

		round := c.cfg.Clock.CalcRound(height)
		if round > targetRound {
			break
		}

		txs, err := c.cfg.Store.GetTxsForBlock(rec.ID)
		if err != nil {
			return chainerrors.New(chainerrors.Persistence, err)
		}

		block := blockFromRecord(rec, txs)
		for _, tx := range block.Transactions {
			if err := ledger.Apply(tx, c.accounts); err != nil {
				return err
			}
		}

		c.mu.Lock()
		c.lastBlock = block
		c.mu.Unlock()

		if round == targetRound {
			break
		}
	}

	return nil
}

// ReceiveBlockFromNetwork validates and appends an incoming block, or
// resolves a same-height fork against the current tip by the tie-break
// rule below. Intended to run inside a Sequence task, by the caller.
func (c *Chain) ReceiveBlockFromNetwork(ctx context.Context, incoming Block, broadcast bool) error {
	last := c.LastBlock()

	switch {
	case incoming.PreviousBlockID == last.ID && incoming.Height == last.Height+1:
		return c.appendBlock(incoming, broadcast)

	case incoming.Height == last.Height && incoming.ID == last.ID:
		return nil

	case incoming.Height == last.Height && incoming.ID != last.ID:
		if incoming.Timestamp < last.Timestamp || (incoming.Timestamp == last.Timestamp && incoming.ID < last.ID) {
			if err := c.deleteLastBlockLocked(); err != nil {
				return err
			}
			return c.appendBlock(incoming, broadcast)
		}
		return chainerrors.Newf(chainerrors.Consensus, "block %s: loses tie-break against current tip %s", incoming.ID, last.ID)

	default:
		return chainerrors.Newf(chainerrors.Consensus, "block %s: height %d not contiguous with tip height %d", incoming.ID, incoming.Height, last.Height)
	}
}

// ProcessBlock adapts loader.Block to ReceiveBlockFromNetwork, satisfying
// loader.ChainState. The block is processed as a task on Sequencer when one
// is configured.
func (c *Chain) ProcessBlock(ctx context.Context, lb loader.Block, broadcast bool) error {
	block, ok := lb.Raw.(Block)
	if !ok {
		return chainerrors.Newf(chainerrors.Validation, "chainstate: unexpected block payload for %s", lb.ID)
	}

	task := func(taskCtx context.Context) (any, error) {
		return nil, c.ReceiveBlockFromNetwork(taskCtx, block, broadcast)
	}
	if c.cfg.Sequencer != nil {
		_, err := c.cfg.Sequencer.Add(ctx, task)
		return err
	}
	_, err := task(ctx)
	return err
}

// appendBlock runs the full append pipeline: verify signature, verify
// payload, verify slot, check transactions, persist, update lastBlock,
// recompute broadhash, emit events.
func (c *Chain) appendBlock(block Block, broadcast bool) error {
	if err := block.VerifySignature(); err != nil {
		return err
	}
	if err := block.VerifyPayload(c.cfg.MaxTransactions, c.cfg.MaxPayloadLength); err != nil {
		return err
	}
	if c.cfg.DelegateForSlot != nil {
		if err := block.VerifySlot(c.cfg.Clock, c.cfg.DelegateForSlot); err != nil {
			return err
		}
	}

	for _, tx := range block.Transactions {
		if err := tx.VerifySignature(); err != nil {
			return err
		}
	}

	reward := 0
	if err := c.persistAndApply(block, uint64(reward)); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastBlock = block
	c.lastReceipt = time.Now()
	c.recentIDs = prependCapped(c.recentIDs, block.ID, 5)
	prevBroadhash := c.broadhash
	c.mu.Unlock()

	newBroadhash, err := recomputeBroadhash(c.recentIDsCopy())
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	c.mu.Lock()
	c.broadhash = newBroadhash
	c.mu.Unlock()

	for _, tx := range block.Transactions {
		c.cfg.Pool.Remove(tx.ID)
	}

	alias := c.cfg.ModuleAlias
	c.cfg.Bus.Publish(bus.TopicName(alias, "blocks:change"), block)
	c.cfg.Bus.Publish(bus.TopicName(alias, "NEW_BLOCK"), block)
	if newBroadhash != prevBroadhash {
		c.cfg.Bus.Publish(bus.TopicName(alias, "NEW_BROADHASH"), newBroadhash)
	}
	if broadcast {
		c.cfg.Bus.Publish(bus.TopicName(alias, "BROADCAST_BLOCK"), block)
	}

	return nil
}

func (c *Chain) recentIDsCopy() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.recentIDs))
	copy(out, c.recentIDs)
	return out
}

func prependCapped(ids []string, id string, cap int) []string {
	out := append([]string{id}, ids...)
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

// persistAndApply writes block and its transactions to the store in a
// single unit of work and applies them to account state. Any persistence
// failure aborts the whole append and rolls the in-memory account cache
// back, so the two never drift apart.
func (c *Chain) persistAndApply(block Block, reward uint64) error {
	tx, err := c.cfg.Store.Begin()
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	if err := tx.PutBlock(block.Record(reward)); err != nil {
		tx.Rollback()
		return chainerrors.New(chainerrors.Persistence, err)
	}

	applied := make([]txtypes.Transaction, 0, len(block.Transactions))
	for _, t := range block.Transactions {
		if err := tx.PutTx(store.TxRecord{ID: t.ID, BlockID: block.ID, Height: block.Height, Tx: t}); err != nil {
			tx.Rollback()
			c.accounts.rollback()
			return chainerrors.New(chainerrors.Persistence, err)
		}

		if err := ledger.Apply(t, c.accounts); err != nil {
			tx.Rollback()
			c.accounts.rollback()
			return err
		}
		applied = append(applied, t)
	}

	for _, a := range c.accounts.dirty() {
		if err := tx.PutAccount(a); err != nil {
			tx.Rollback()
			c.accounts.rollback()
			return chainerrors.New(chainerrors.Persistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		c.accounts.rollback()
		return chainerrors.New(chainerrors.Persistence, err)
	}

	c.accounts.commit()
	return nil
}

// deleteLastBlockLocked reverse-applies the current tip's transactions,
// removes its store rows, and restores the previous block as tip.
func (c *Chain) deleteLastBlockLocked() error {
	last := c.LastBlock()

	tx, err := c.cfg.Store.Begin()
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	if err := tx.DeleteTxsForBlock(last.ID); err != nil {
		tx.Rollback()
		return chainerrors.New(chainerrors.Persistence, err)
	}
	if err := tx.DeleteBlock(last.ID); err != nil {
		tx.Rollback()
		return chainerrors.New(chainerrors.Persistence, err)
	}
	if err := tx.Commit(); err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	c.cfg.Pool.Reinsert(last.Transactions)

	prevRec, err := c.cfg.Store.GetBlockByID(last.PreviousBlockID)
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}
	prevTxs, err := c.cfg.Store.GetTxsForBlock(prevRec.ID)
	if err != nil {
		return chainerrors.New(chainerrors.Persistence, err)
	}

	c.mu.Lock()
	c.lastBlock = blockFromRecord(prevRec, prevTxs)
	c.mu.Unlock()

	c.cfg.Bus.Publish(bus.TopicName(c.cfg.ModuleAlias, "DELETE_BLOCK"), last)
	return nil
}

func blockFromRecord(rec store.BlockRecord, txs []store.TxRecord) Block {
	transactions := make([]txtypes.Transaction, len(txs))
	for i, t := range txs {
		transactions[i] = t.Tx
	}

	return Block{
		ID:                 rec.ID,
		Height:             rec.Height,
		PreviousBlockID:    rec.PreviousBlockID,
		Timestamp:          rec.Timestamp,
		GeneratorPublicKey: rec.GeneratorPublicKey,
		BlockSignature:     rec.BlockSignature,
		PayloadHash:        rec.PayloadHash,
		PayloadLength:      rec.PayloadLength,
		Transactions:       transactions,
	}
}
