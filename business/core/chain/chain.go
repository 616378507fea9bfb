// Package chain wires the chain engine's independently-built packages
// (chainstate, forger, loader, broadcaster, txpool, peer, sequence, bus,
// transport, store) into one running node and exposes the module actions
// the node's HTTP handlers call. It is the orchestrator main.go
// constructs, the way app/services/node/main.go constructs and wires
// state.State and worker.Worker together.
package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/broadcaster"
	"github.com/ardanlabs/dposchain/foundation/blockchain/bus"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainstate"
	"github.com/ardanlabs/dposchain/foundation/blockchain/forger"
	"github.com/ardanlabs/dposchain/foundation/blockchain/loader"
	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
	"github.com/ardanlabs/dposchain/foundation/blockchain/rounds"
	"github.com/ardanlabs/dposchain/foundation/blockchain/sequence"
	"github.com/ardanlabs/dposchain/foundation/blockchain/slots"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/transport"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txpool"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// EventHandler mirrors the evHandler logging convention every package in
// this module accepts.
type EventHandler func(format string, args ...any)

// Config carries everything Chain needs to build and wire its
// collaborators. A zero EventHandler is replaced with a no-op.
type Config struct {
	ModuleAlias      string
	Host             string
	ActiveDelegates  int
	MaxTransactions  int
	MaxPayloadLength int
	Clock            slots.Config
	Store            store.Store
	KnownPeers       []string
	RequestTimeout   time.Duration

	SyncInterval        time.Duration
	BlockReceiptTimeout time.Duration
	FetchLimit          int

	BroadcastInterval     time.Duration
	BroadcastReleaseLimit int

	EvHandler EventHandler
}

// Chain is the running node: the chain state machine plus the workers that
// keep it moving (Forger, Loader, Broadcaster) and the shared pool, peer
// set, and bus they're built around.
type Chain struct {
	cfg       Config
	evHandler EventHandler

	bus       *bus.Bus
	pool      *txpool.Pool
	peers     *peer.Set
	sequencer *sequence.Sequence
	transport *transport.Client

	chainState  *chainstate.Chain
	forger      *forger.Forger
	loader      *loader.Loader
	broadcaster *broadcaster.Broadcaster

	blockSub bus.Subscription

	shut chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Chain, loads (or persists, on an empty store) the
// genesis block, and wires every collaborator. Call Run to start its
// background loops.
func New(cfg Config, genesisBlock chainstate.Block) (*Chain, error) {
	evHandler := cfg.EvHandler
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	eventBus := bus.New()
	pool := txpool.New(txpool.Config{})
	peers := peer.NewSet()
	for _, host := range cfg.KnownPeers {
		peers.Add(peer.New(host))
	}

	sequencer := sequence.New(sequence.Config{
		EvHandler: sequence.EventHandler(evHandler),
	})

	client := transport.New(cfg.RequestTimeout)

	c := &Chain{
		cfg:       cfg,
		evHandler: evHandler,
		bus:       eventBus,
		pool:      pool,
		peers:     peers,
		sequencer: sequencer,
		transport: client,
		shut:      make(chan struct{}),
	}

	chainState := chainstate.NewChain(chainstate.Config{
		ModuleAlias:      cfg.ModuleAlias,
		ActiveDelegates:  cfg.ActiveDelegates,
		MaxTransactions:  cfg.MaxTransactions,
		MaxPayloadLength: cfg.MaxPayloadLength,
		Clock:            cfg.Clock,
		Store:            cfg.Store,
		Pool:             pool,
		Sequencer:        sequencer,
		Bus:              eventBus,
		EvHandler:        chainstate.EventHandler(evHandler),
		DelegateForSlot:  c.delegateForSlot,
	})
	c.chainState = chainState

	if err := chainState.LoadBlockChain(context.Background(), genesisBlock, 0); err != nil {
		return nil, fmt.Errorf("loading chain: %w", err)
	}

	c.forger = forger.New(forger.Config{
		ModuleAlias:     cfg.ModuleAlias,
		ActiveDelegates: cfg.ActiveDelegates,
		MaxTransactions: cfg.MaxTransactions,
		Clock:           cfg.Clock,
		Chain:           chainState,
		Pool:            pool,
		Store:           cfg.Store,
		Sequencer:       sequencer,
		EvHandler:       forger.EventHandler(evHandler),
	})

	c.loader = loader.New(loader.Config{
		SyncInterval:        cfg.SyncInterval,
		BlockReceiptTimeout: cfg.BlockReceiptTimeout,
		FetchLimit:          cfg.FetchLimit,
		EvHandler:           loader.EventHandler(evHandler),
	}, client, chainState, pool, peers)

	c.broadcaster = broadcaster.New(broadcaster.Config{
		Interval:     cfg.BroadcastInterval,
		ReleaseLimit: cfg.BroadcastReleaseLimit,
		EvHandler:    broadcaster.EventHandler(evHandler),
	}, peers, client.Send)

	sub, err := eventBus.Subscribe(bus.TopicName(cfg.ModuleAlias, "BROADCAST_BLOCK"), c.onBroadcastBlock)
	if err != nil {
		return nil, fmt.Errorf("subscribing to broadcast events: %w", err)
	}
	c.blockSub = sub

	return c, nil
}

// delegateForSlot resolves the public key assigned to slot under the
// current top-voted candidates, the same schedule Forger uses to decide
// whether it should forge, so chainstate.Block.VerifySlot checks an
// incoming block against the same authority.
func (c *Chain) delegateForSlot(slot int64) string {
	round := c.cfg.Clock.CalcRound(c.chainState.Height() + 1)

	candidates, err := c.cfg.Store.TopVotedDelegates(c.cfg.ActiveDelegates)
	if err != nil {
		return ""
	}

	voted := make([]rounds.VotedDelegate, len(candidates))
	for i, a := range candidates {
		voted[i] = rounds.VotedDelegate{PublicKey: a.PublicKey, VoteWeight: a.VoteWeight}
	}

	schedule, err := rounds.GenerateList(round, c.cfg.ActiveDelegates, voted, c.chainState.LastBlockID(), nil)
	if err != nil {
		return ""
	}

	idx := rounds.DelegateIndexForSlot(slot, c.cfg.ActiveDelegates)
	if idx < 0 || idx >= len(schedule) {
		return ""
	}
	return schedule[idx]
}

// onBroadcastBlock forwards a committed block onto the broadcaster's
// outbound queue whenever the chain engine publishes BROADCAST_BLOCK.
func (c *Chain) onBroadcastBlock(ev bus.Event) {
	block, ok := ev.Data.(chainstate.Block)
	if !ok {
		return
	}
	c.broadcaster.Enqueue(broadcaster.Announcement{API: "postBlock", ID: block.ID, Data: block})
}

// Run starts the forger and broadcaster background loops and begins
// periodic peer synchronization. Shutdown stops all three.
func (c *Chain) Run() {
	c.forger.Run()
	c.broadcaster.Run(c.cfg.Host)

	c.wg.Add(1)
	go c.syncOperations()
}

// Shutdown stops every background loop this Chain owns: the sync loop, the
// forger, the broadcaster and the sequencer, in that order, then drops the
// block subscription.
func (c *Chain) Shutdown() {
	close(c.shut)
	c.wg.Wait()

	c.forger.Shutdown()
	c.broadcaster.Shutdown()
	c.sequencer.Shutdown()
	c.bus.Unsubscribe(c.blockSub)
}

// syncOperations ticks at SyncInterval, asking the loader to bring the
// chain in line with a peer if one is further ahead.
func (c *Chain) syncOperations() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.shut:
			return

		case <-ticker.C:
			c.runSyncOperation()
		}
	}
}

func (c *Chain) runSyncOperation() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.BlockReceiptTimeout)
	defer cancel()

	recentIDs := c.chainState.RecentBlockIDs()
	c.loader.MaybeSync(ctx, c.cfg.Host, recentIDs)
}

// SubmitTransaction validates a client-submitted transaction and, if
// valid, admits it into the pool as ready to forge and queues it for
// announcement to peers.
func (c *Chain) SubmitTransaction(ctx context.Context, tx txtypes.Transaction) error {
	wantID, err := tx.Hash()
	if err != nil {
		return chainerrors.New(chainerrors.Validation, err)
	}
	if tx.ID != wantID {
		return chainerrors.Newf(chainerrors.Validation, "transaction id %s does not match its hash %s", tx.ID, wantID)
	}

	if err := tx.VerifySignature(); err != nil {
		return chainerrors.New(chainerrors.Validation, err)
	}

	if err := tx.ValidateAsset(); err != nil {
		return chainerrors.New(chainerrors.Validation, err)
	}

	sender, err := c.cfg.Store.GetAccount(tx.SenderID)
	if err != nil {
		return chainerrors.New(chainerrors.Validation, err)
	}
	if sender.Balance < tx.Amount+tx.Fee {
		return chainerrors.Newf(chainerrors.Validation, "sender %s balance %d insufficient for amount %d plus fee %d", tx.SenderID, sender.Balance, tx.Amount, tx.Fee)
	}

	if err := c.pool.Add(tx); err != nil {
		return err
	}
	if err := c.pool.Promote(tx.ID, txpool.Ready); err != nil {
		return err
	}

	c.broadcaster.Enqueue(broadcaster.Announcement{API: "postTransactions", ID: tx.ID, Data: tx})

	return nil
}

// ReceiveBlock hands a block proposed or relayed by a peer to the chain
// engine's normal append pipeline, run as a task on the chain's Sequence.
func (c *Chain) ReceiveBlock(ctx context.Context, block chainstate.Block) error {
	_, err := c.sequencer.Add(ctx, func(taskCtx context.Context) (any, error) {
		return nil, c.chainState.ReceiveBlockFromNetwork(taskCtx, block, true)
	})
	return err
}

// Status reports this node's current module alias, broadhash, height, and
// known peers, the shape every RequestPeerStatus call asks for.
func (c *Chain) Status() peer.Status {
	return peer.Status{
		ModuleAlias: c.cfg.ModuleAlias,
		Broadhash:   c.chainState.Broadhash(),
		Height:      c.chainState.Height(),
		KnownPeers:  c.peers.Copy(""),
	}
}

// Mempool returns the transactions currently sitting in the ready queue,
// the set a peer's RequestPeerPool call receives.
func (c *Chain) Mempool() []txtypes.Transaction {
	return c.pool.GetMergedTransactionList(false, 0)
}

// BlocksByRange returns up to limit committed blocks with heights above
// fromHeight and up to toHeight inclusive, for explorer-style queries.
func (c *Chain) BlocksByRange(fromHeight, toHeight uint64, limit int) ([]store.BlockRecord, error) {
	return c.cfg.Store.GetBlocksBetweenHeights(fromHeight, toHeight, limit)
}

// BlocksAfter returns up to limit full blocks (with their transactions)
// following afterID, the shape a peer's FetchBlocks call needs to replay
// them through ReceiveBlock.
func (c *Chain) BlocksAfter(afterID string, limit int) ([]chainstate.Block, error) {
	records, err := c.cfg.Store.GetBlocksAfter(afterID, limit)
	if err != nil {
		return nil, err
	}

	blocks := make([]chainstate.Block, len(records))
	for i, rec := range records {
		txs, err := c.cfg.Store.GetTxsForBlock(rec.ID)
		if err != nil {
			return nil, err
		}

		transactions := make([]txtypes.Transaction, len(txs))
		for j, t := range txs {
			transactions[j] = t.Tx
		}

		blocks[i] = chainstate.Block{
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
	return blocks, nil
}

// FindCommonBlock reports which of ids this node also has, newest first,
// for a peer's FindCommonBlock request.
func (c *Chain) FindCommonBlock(ids []string) (string, error) {
	rec, err := c.cfg.Store.FindCommonBlock(ids)
	if err != nil {
		if err == store.ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return rec.ID, nil
}

// AddKnownPeer registers p as known to this node. Returns true if p was
// new.
func (c *Chain) AddKnownPeer(p peer.Peer) bool {
	return c.peers.Add(p)
}

// LoadDelegate decrypts and registers a delegate key this node can forge
// blocks with, delegating to Forger.
func (c *Chain) LoadDelegate(secret forger.Secret) (string, error) {
	return c.forger.LoadDelegate(secret)
}

// SubscribeBlocks registers fn to be called with every block this node
// appends to its chain, the feed a block-stream websocket client consumes.
func (c *Chain) SubscribeBlocks(fn func(chainstate.Block)) (bus.Subscription, error) {
	return c.bus.Subscribe(bus.TopicName(c.cfg.ModuleAlias, "blocks:change"), func(ev bus.Event) {
		block, ok := ev.Data.(chainstate.Block)
		if !ok {
			return
		}
		fn(block)
	})
}

// UnsubscribeBlocks removes a subscription registered with SubscribeBlocks.
func (c *Chain) UnsubscribeBlocks(sub bus.Subscription) error {
	return c.bus.Unsubscribe(sub)
}
