// Package loader performs the initial load and periodic catch-up sync:
// pulling the shared transaction pool from a peer on startup, then
// periodically finding a common block with a chosen peer and fetching
// blocks forward from there.
//
// Shaped after a Sync worker that iterates known peers, pulls their
// mempool and blocks-ahead, logging and continuing on a per-peer failure.
// Generalized from "every peer, synchronously" into "one chosen forward
// peer, common-block search, paginated block fetch", and wrapped in a
// syncing flag and a staleness gate a plain per-tick Sync has no analogue
// for.
package loader

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// Network is the RPC surface the Loader drives against a chosen peer.
// Concrete implementations live in transport; this interface keeps loader
// free of any wire format.
type Network interface {
	RequestPeerStatus(ctx context.Context, p peer.Peer) (peer.Status, error)
	RequestPeerPool(ctx context.Context, p peer.Peer) ([]txtypes.Transaction, error)
	FindCommonBlock(ctx context.Context, p peer.Peer, ids []string) (string, error)
	FetchBlocks(ctx context.Context, p peer.Peer, afterID string, limit int) ([]Block, error)
}

// Block is the minimal shape the loader needs from a fetched block to
// hand it to the chain for processing; chainstate.ProcessBlock accepts the
// richer concrete type.
type Block struct {
	ID     string
	Height uint64
	Raw    any
}

// ChainState is the narrow surface of chainstate the Loader drives: height
// for detecting whether a peer is ahead, and a hook to process one fetched
// block under Sequence.
type ChainState interface {
	Height() uint64
	LastBlockID() string
	LastReceipt() time.Time
	ProcessBlock(ctx context.Context, b Block, broadcast bool) error
}

// Pool is the narrow txpool surface the Loader feeds with a peer's shared
// transactions.
type Pool interface {
	Add(tx txtypes.Transaction) error
}

// EventHandler mirrors the evHandler logging convention used throughout
// this module.
type EventHandler func(format string, args ...any)

// Config tunes the loader's stale and sync timers.
type Config struct {
	SyncInterval        time.Duration
	BlockReceiptTimeout time.Duration
	FetchLimit          int
	EvHandler           EventHandler
}

// Loader drives initial load and periodic sync against a Network.
type Loader struct {
	cfg     Config
	net     Network
	chain   ChainState
	pool    Pool
	peers   *peer.Set
	evHandler EventHandler

	syncing atomic.Bool
}

// New constructs a Loader.
func New(cfg Config, net Network, chain ChainState, pool Pool, peers *peer.Set) *Loader {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 10 * time.Second
	}
	if cfg.BlockReceiptTimeout <= 0 {
		cfg.BlockReceiptTimeout = 5 * time.Second
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 34
	}
	evHandler := cfg.EvHandler
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &Loader{cfg: cfg, net: net, chain: chain, pool: pool, peers: peers, evHandler: evHandler}
}

// IsSyncing reports whether a sync task is currently active.
func (l *Loader) IsSyncing() bool {
	return l.syncing.Load()
}

// IsStale reports whether the chain has gone too long without accepting a
// block: now - lastReceipt exceeds the configured receipt timeout.
func (l *Loader) IsStale() bool {
	return time.Since(l.chain.LastReceipt()) > l.cfg.BlockReceiptTimeout
}

// LoadUnconfirmedTransactions pulls the shared pool from one peer on
// startup and ingests every transaction it returns.
func (l *Loader) LoadUnconfirmedTransactions(ctx context.Context, host string) error {
	peers := l.peers.Copy(host)
	if len(peers) == 0 {
		return nil
	}

	p := peers[0]
	txs, err := l.net.RequestPeerPool(ctx, p)
	if err != nil {
		l.evHandler("loader: loadUnconfirmedTransactions: %s: ERROR: %s", p.Host, err)
		return chainerrors.New(chainerrors.Network, err)
	}

	for _, tx := range txs {
		if err := l.pool.Add(tx); err != nil {
			l.evHandler("loader: loadUnconfirmedTransactions: %s: add %s: WARNING: %s", p.Host, tx.ID, err)
		}
	}

	return nil
}

// MaybeSync runs Sync if the chain is stale and no sync is already
// active; skipped if already syncing or not stale. Intended to be called
// on the loader's periodic timer.
func (l *Loader) MaybeSync(ctx context.Context, host string, recentBlockIDs []string) {
	if l.IsSyncing() || !l.IsStale() {
		return
	}
	if err := l.Sync(ctx, host, recentBlockIDs); err != nil {
		l.evHandler("loader: maybeSync: ERROR: %s", err)
	}
}

// Sync finds a common block with a chosen forward peer, then repeatedly
// fetches and processes blocks forward from there until the peer reports
// empty or this node's tip matches.
func (l *Loader) Sync(ctx context.Context, host string, recentBlockIDs []string) error {
	if !l.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer l.syncing.Store(false)

	p, peerHeight, err := l.chooseForwardPeer(ctx, host)
	if err != nil {
		return err
	}
	if p.Host == "" {
		return nil
	}

	commonID, err := l.net.FindCommonBlock(ctx, p, recentBlockIDs)
	if err != nil {
		l.evHandler("loader: sync: findCommonBlock: %s: ERROR: %s", p.Host, err)
		return chainerrors.New(chainerrors.Network, err)
	}

	cursor := commonID
	for {
		blocks, err := l.net.FetchBlocks(ctx, p, cursor, l.cfg.FetchLimit)
		if err != nil {
			l.evHandler("loader: sync: fetchBlocks: %s: ERROR: %s", p.Host, err)
			return chainerrors.New(chainerrors.Network, err)
		}
		if len(blocks) == 0 {
			return nil
		}

		for _, b := range blocks {
			if err := l.chain.ProcessBlock(ctx, b, false); err != nil {
				l.evHandler("loader: sync: processBlock: %s: ERROR: %s", b.ID, err)
				return chainerrors.New(chainerrors.Consensus, err)
			}
			cursor = b.ID
		}

		if l.chain.Height() >= peerHeight {
			return nil
		}
	}
}

// chooseForwardPeer picks the first known peer reporting a height greater
// than this node's — a plain Sync instead iterates every peer; this
// generalizes to "the one that's ahead" for a single common-block search.
// It also returns the height that peer reported.
func (l *Loader) chooseForwardPeer(ctx context.Context, host string) (peer.Peer, uint64, error) {
	myHeight := l.chain.Height()

	for _, p := range l.peers.Copy(host) {
		status, err := l.net.RequestPeerStatus(ctx, p)
		if err != nil {
			l.evHandler("loader: chooseForwardPeer: %s: ERROR: %s", p.Host, err)
			continue
		}
		if status.Height > myHeight {
			return p, status.Height, nil
		}
	}

	return peer.Peer{}, 0, nil
}
