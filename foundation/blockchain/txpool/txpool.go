// Package txpool holds unconfirmed, verified, and pending transactions
// across four lifecycle queues (received, validated, ready, pending), and
// selects among them for forging and peer sharing.
//
// Shaped after a mempool wrapping a map keyed by id with a selector
// choosing the forging order, generalized from one map into four typed
// queues and from nonce-account keys into bare transaction ids, since a
// Transaction here is not nonce-sequenced the way an account-nonce keyed
// mempool entry is.
package txpool

import (
	"sort"
	"sync"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txtypes"
)

// Queue names a pool's four lifecycle stages.
type Queue int

const (
	Received Queue = iota
	Validated
	Ready
	Pending
)

func (q Queue) String() string {
	switch q {
	case Received:
		return "received"
	case Validated:
		return "validated"
	case Ready:
		return "ready"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// entry is one pooled transaction plus the bookkeeping the pool needs:
// which queue it currently sits in and when it arrived, for fee-per-byte
// then FIFO ordering and for capacity eviction.
type entry struct {
	tx         txtypes.Transaction
	queue      Queue
	receivedAt time.Time
}

// Config bounds each queue's capacity. The pending-expiry window is not
// part of it; it is passed to ExpirePending on each call.
type Config struct {
	MaxPerQueue int
}

// Pool is the transaction pool. Its operations are serialized by its own
// mutex; callers such as transaction submission and the loader's pool pull
// call it directly, outside the chain's Sequence task queue.
type Pool struct {
	mu     sync.RWMutex
	cfg    Config
	byID   map[string]*entry
	bySender map[string]map[string]struct{}
}

// New constructs an empty Pool.
func New(cfg Config) *Pool {
	if cfg.MaxPerQueue <= 0 {
		cfg.MaxPerQueue = 1000
	}

	return &Pool{
		cfg:      cfg,
		byID:     make(map[string]*entry),
		bySender: make(map[string]map[string]struct{}),
	}
}

// Count returns how many transactions sit in queue.
func (p *Pool) Count(queue Queue) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, e := range p.byID {
		if e.queue == queue {
			n++
		}
	}
	return n
}

// Has reports whether id is already pooled in any queue; queues never
// hold duplicates by id.
func (p *Pool) Has(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.byID[id]
	return ok
}

// Add places tx into the received queue. It is the caller's
// responsibility to have validated tx's shape/signature first; Add only
// enforces the pool's own invariants (no duplicate id, queue capacity).
func (p *Pool) Add(tx txtypes.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[tx.ID]; exists {
		return chainerrors.Newf(chainerrors.Pool, "txpool: transaction %s already pooled", tx.ID)
	}

	if p.countLocked(Received) >= p.cfg.MaxPerQueue {
		p.evictLowestFeeLocked(Received)
	}

	e := &entry{tx: tx, queue: Received, receivedAt: now()}
	p.byID[tx.ID] = e
	p.indexSenderLocked(tx.SenderID, tx.ID)

	return nil
}

// Promote moves id from its current queue to to, used as a transaction
// flows received → validated → ready, or ready → pending for multisig
// transactions still collecting signatures.
func (p *Pool) Promote(id string, to Queue) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byID[id]
	if !ok {
		return chainerrors.Newf(chainerrors.Pool, "txpool: transaction %s not pooled", id)
	}

	if to == Ready || to == Pending {
		if p.countLocked(to) >= p.cfg.MaxPerQueue {
			p.evictLowestFeeLocked(to)
		}
	}

	e.queue = to
	return nil
}

// Remove drops id from the pool entirely, used when a transaction is
// confirmed into a block.
func (p *Pool) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removeLocked(id)
}

// Reinsert puts txs back into the ready queue, walking them in reverse
// order and giving each a fresh receivedAt, used when a block is rolled
// back. Transactions already pooled are skipped.
func (p *Pool) Reinsert(txs []txtypes.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		if _, exists := p.byID[tx.ID]; exists {
			continue
		}
		e := &entry{tx: tx, queue: Ready, receivedAt: now()}
		p.byID[tx.ID] = e
		p.indexSenderLocked(tx.SenderID, tx.ID)
	}
}

// GetMergedTransactionList returns up to limit ready transactions, ordered
// by fee-per-byte descending then receivedAt ascending. If reverse is true
// the order is inverted.
func (p *Pool) GetMergedTransactionList(reverse bool, limit int) []txtypes.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ready []*entry
	for _, e := range p.byID {
		if e.queue == Ready {
			ready = append(ready, e)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		fi, fj := feePerByte(ready[i].tx), feePerByte(ready[j].tx)
		if fi != fj {
			return fi > fj
		}
		return ready[i].receivedAt.Before(ready[j].receivedAt)
	})

	if reverse {
		for i, j := 0, len(ready)-1; i < j; i, j = i+1, j-1 {
			ready[i], ready[j] = ready[j], ready[i]
		}
	}

	if limit > 0 && limit < len(ready) {
		ready = ready[:limit]
	}

	out := make([]txtypes.Transaction, len(ready))
	for i, e := range ready {
		out[i] = e.tx
	}
	return out
}

// ExpirePending removes every pending transaction older than ttl, called
// on a periodic tick.
func (p *Pool) ExpirePending(ttl time.Duration) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []string
	cutoff := now().Add(-ttl)
	for id, e := range p.byID {
		if e.queue == Pending && e.receivedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		p.removeLocked(id)
	}
	return expired
}

func feePerByte(tx txtypes.Transaction) float64 {
	size := len(tx.ID) + len(tx.SenderPublicKey) + len(tx.Signature) + 64
	if size == 0 {
		return 0
	}
	return float64(tx.Fee) / float64(size)
}

func (p *Pool) countLocked(q Queue) int {
	n := 0
	for _, e := range p.byID {
		if e.queue == q {
			n++
		}
	}
	return n
}

// evictLowestFeeLocked drops the lowest fee-per-byte non-ready entry in
// queue to make room: overflow rejects the oldest non-ready item of
// lowest fee-per-byte.
func (p *Pool) evictLowestFeeLocked(q Queue) {
	var worstID string
	var worstFee float64
	first := true

	for id, e := range p.byID {
		if e.queue != q || e.queue == Ready {
			continue
		}
		fee := feePerByte(e.tx)
		if first || fee < worstFee || (fee == worstFee && e.receivedAt.Before(p.byID[worstID].receivedAt)) {
			worstID, worstFee, first = id, fee, false
		}
	}

	if worstID != "" {
		p.removeLocked(worstID)
	}
}

func (p *Pool) removeLocked(id string) {
	e, ok := p.byID[id]
	if !ok {
		return
	}
	delete(p.byID, id)

	if senders, ok := p.bySender[e.tx.SenderID]; ok {
		delete(senders, id)
		if len(senders) == 0 {
			delete(p.bySender, e.tx.SenderID)
		}
	}
}

func (p *Pool) indexSenderLocked(sender, id string) {
	senders, ok := p.bySender[sender]
	if !ok {
		senders = make(map[string]struct{})
		p.bySender[sender] = senders
	}
	senders[id] = struct{}{}
}

// now is the clock the pool stamps receivedAt with.
var now = time.Now
