// Package broadcaster maintains the queue of outbound block/transaction
// announcements and drains it in batches to a random subset of peers.
//
// Shaped after a shareTxOperations-style worker: a buffered channel drained
// by one goroutine that posts to every known peer, logging and continuing
// on a per-peer failure. Generalized from "one channel of transactions,
// fan-out to every peer" into "one queue of announcements, deduplicated by
// (api, id), drained on a fixed interval, fanned out to a random subset
// sized by releaseLimit".
package broadcaster

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
)

// Announcement is one outbound item queued for broadcast: api names the
// endpoint ("postBlock", "postTransactions", ...) and data is the payload;
// id is the dedup key within that api.
type Announcement struct {
	API  string
	ID   string
	Data any
}

type dedupKey struct {
	api string
	id  string
}

// Sender delivers one announcement to one peer. The caller supplies the
// concrete implementation (an HTTP client, typically), keeping this
// package free of any transport dependency.
type Sender func(ctx context.Context, p peer.Peer, a Announcement) error

// EventHandler receives log-worthy events, the same evHandler callback
// convention used throughout this module.
type EventHandler func(format string, args ...any)

// Config tunes the broadcaster's batching interval and release limit.
type Config struct {
	Interval    time.Duration
	ReleaseLimit int
	EvHandler   EventHandler
}

// Broadcaster batches and drains outbound announcements to known peers.
type Broadcaster struct {
	cfg    Config
	peers  *peer.Set
	send   Sender
	evHandler EventHandler

	mu     sync.Mutex
	queue  []Announcement
	seen   map[dedupKey]struct{}

	shut chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Broadcaster draining peers via send on cfg.Interval.
func New(cfg Config, peers *peer.Set, send Sender) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.ReleaseLimit <= 0 {
		cfg.ReleaseLimit = 10
	}
	evHandler := cfg.EvHandler
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	return &Broadcaster{
		cfg:       cfg,
		peers:     peers,
		send:      send,
		evHandler: evHandler,
		seen:      make(map[dedupKey]struct{}),
		shut:      make(chan struct{}),
	}
}

// Enqueue adds a announcement to the outbound queue, ignoring it if an
// announcement with the same (api, id) is already queued.
func (b *Broadcaster) Enqueue(a Announcement) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := dedupKey{api: a.API, id: a.ID}
	if _, exists := b.seen[key]; exists {
		return
	}

	b.seen[key] = struct{}{}
	b.queue = append(b.queue, a)
}

// Run starts the drain loop on its own goroutine. Call Shutdown to stop it.
func (b *Broadcaster) Run(host string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(b.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				b.drain(host)
			case <-b.shut:
				return
			}
		}
	}()
}

// Shutdown stops the drain loop and waits for it to exit.
func (b *Broadcaster) Shutdown() {
	close(b.shut)
	b.wg.Wait()
}

func (b *Broadcaster) drain(host string) {
	batch := b.takeBatch()
	if len(batch) == 0 {
		return
	}

	targets := b.randomPeerSubset(host)
	if len(targets) == 0 {
		b.requeue(batch)
		return
	}

	for _, a := range batch {
		for _, p := range targets {
			if err := b.send(context.Background(), p, a); err != nil {
				b.evHandler("broadcaster: drain: %s: api=%s id=%s: ERROR: %s", p.Host, a.API, a.ID, err)
			}
		}
	}
}

func (b *Broadcaster) takeBatch() []Announcement {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.cfg.ReleaseLimit
	if n > len(b.queue) {
		n = len(b.queue)
	}

	batch := b.queue[:n]
	b.queue = b.queue[n:]

	for _, a := range batch {
		delete(b.seen, dedupKey{api: a.API, id: a.ID})
	}

	return batch
}

func (b *Broadcaster) requeue(batch []Announcement) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(batch, b.queue...)
	for _, a := range batch {
		b.seen[dedupKey{api: a.API, id: a.ID}] = struct{}{}
	}
}

func (b *Broadcaster) randomPeerSubset(host string) []peer.Peer {
	all := b.peers.Copy(host)
	if len(all) == 0 {
		return nil
	}

	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	n := b.cfg.ReleaseLimit
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Pending returns the number of announcements currently queued, for tests
// and diagnostics.
func (b *Broadcaster) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}
