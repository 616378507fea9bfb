package chainstate

import (
	"strings"

	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
)

// accountCache is the ledger.Accounts adapter appendBlock applies a
// block's transactions through: reads fall back to the store on a miss,
// writes stay buffered until commit so a mid-block persistence failure can
// discard them with rollback — a persistence failure aborts the whole
// append and the in-memory state reverts with it.
type accountCache struct {
	store   store.Store
	pending map[string]store.Account
}

func newAccountCache(s store.Store) accountCache {
	return accountCache{store: s, pending: make(map[string]store.Account)}
}

func normalizeAddress(address string) string {
	return strings.ToUpper(address)
}

// Get implements ledger.Accounts.
func (c accountCache) Get(address string) (store.Account, bool) {
	key := normalizeAddress(address)

	if a, ok := c.pending[key]; ok {
		return a, true
	}

	a, err := c.store.GetAccount(address)
	if err != nil {
		return store.Account{}, false
	}
	return a, true
}

// Put implements ledger.Accounts.
func (c accountCache) Put(a store.Account) {
	c.pending[normalizeAddress(a.Address)] = a
}

// dirty returns every account buffered by the current block's application,
// for persistAndApply to write to the store's unit-of-work.
func (c accountCache) dirty() []store.Account {
	out := make([]store.Account, 0, len(c.pending))
	for _, a := range c.pending {
		out = append(out, a)
	}
	return out
}

// commit clears the buffer once persistAndApply's store.Tx has committed
// successfully, so the next block starts from a clean cache.
func (c accountCache) commit() {
	for k := range c.pending {
		delete(c.pending, k)
	}
}

// rollback discards buffered writes from a block whose persistence failed,
// so the next attempt rereads from the store rather than replaying stale
// in-memory deltas.
func (c accountCache) rollback() {
	for k := range c.pending {
		delete(c.pending, k)
	}
}
