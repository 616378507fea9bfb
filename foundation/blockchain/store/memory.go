package store

import (
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store implementation: mutex-guarded maps
// standing in for on-disk storage. It backs the package's tests and is a
// legitimate deployment choice for a single-process development chain.
type Memory struct {
	mu sync.RWMutex

	blocksByID     map[string]BlockRecord
	blocksByHeight map[uint64]BlockRecord
	lastHeight     uint64

	txsByID     map[string]TxRecord
	txsByBlock  map[string][]string

	accounts map[string]Account
	members  map[string][]MultisigMember
	rewards  map[uint64][]RoundReward
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		blocksByID:     make(map[string]BlockRecord),
		blocksByHeight: make(map[uint64]BlockRecord),
		txsByID:        make(map[string]TxRecord),
		txsByBlock:     make(map[string][]string),
		accounts:       make(map[string]Account),
		members:        make(map[string][]MultisigMember),
		rewards:        make(map[uint64][]RoundReward),
	}
}

func normalize(address string) string {
	return strings.ToUpper(address)
}

// Close releases no resources; everything lives on the heap.
func (m *Memory) Close() error { return nil }

// =============================================================================
// Tx

type memTx struct {
	store *Memory

	putBlocks   []BlockRecord
	putTxs      []TxRecord
	delBlocks   []string
	delTxBlocks []string
	putAccounts []Account
	putMembers  []MultisigMember
	putRewards  []RoundReward
}

func (m *Memory) Begin() (Tx, error) {
	return &memTx{store: m}, nil
}

func (t *memTx) PutBlock(b BlockRecord) error {
	t.putBlocks = append(t.putBlocks, b)
	return nil
}

func (t *memTx) PutTx(tr TxRecord) error {
	t.putTxs = append(t.putTxs, tr)
	return nil
}

func (t *memTx) DeleteBlock(id string) error {
	t.delBlocks = append(t.delBlocks, id)
	return nil
}

func (t *memTx) DeleteTxsForBlock(blockID string) error {
	t.delTxBlocks = append(t.delTxBlocks, blockID)
	return nil
}

func (t *memTx) PutAccount(a Account) error {
	t.putAccounts = append(t.putAccounts, a)
	return nil
}

func (t *memTx) PutMultisigMember(member MultisigMember) error {
	t.putMembers = append(t.putMembers, member)
	return nil
}

func (t *memTx) PutRoundReward(r RoundReward) error {
	t.putRewards = append(t.putRewards, r)
	return nil
}

// Commit applies every staged write atomically from the caller's
// perspective: either all of it lands under the lock, or Rollback is called
// and none of it does.
func (t *memTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, blockID := range t.delTxBlocks {
		for _, id := range t.store.txsByBlock[blockID] {
			delete(t.store.txsByID, id)
		}
		delete(t.store.txsByBlock, blockID)
	}

	for _, id := range t.delBlocks {
		if b, ok := t.store.blocksByID[id]; ok {
			delete(t.store.blocksByHeight, b.Height)
		}
		delete(t.store.blocksByID, id)
	}

	for _, b := range t.putBlocks {
		t.store.blocksByID[b.ID] = b
		t.store.blocksByHeight[b.Height] = b
		if b.Height > t.store.lastHeight {
			t.store.lastHeight = b.Height
		}
	}

	for _, tr := range t.putTxs {
		t.store.txsByID[tr.ID] = tr
		t.store.txsByBlock[tr.BlockID] = append(t.store.txsByBlock[tr.BlockID], tr.ID)
	}

	for _, a := range t.putAccounts {
		t.store.accounts[normalize(a.Address)] = a
	}

	for _, mbr := range t.putMembers {
		key := normalize(mbr.WalletAddress)
		t.store.members[key] = append(t.store.members[key], mbr)
	}

	for _, r := range t.putRewards {
		t.store.rewards[r.Round] = append(t.store.rewards[r.Round], r)
	}

	return nil
}

// Rollback discards every staged write; nothing was ever visible outside
// the transaction so there is nothing to undo against the store itself.
func (t *memTx) Rollback() error {
	*t = memTx{store: t.store}
	return nil
}

// =============================================================================
// Reads

func (m *Memory) GetBlockByID(id string) (BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blocksByID[id]
	if !ok {
		return BlockRecord{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) GetBlockByHeight(height uint64) (BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blocksByHeight[height]
	if !ok {
		return BlockRecord{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) GetLastBlock() (BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blocksByHeight[m.lastHeight]
	if !ok {
		return BlockRecord{}, ErrNotFound
	}
	return b, nil
}

func (m *Memory) GetBlocksAfter(lastID string, limit int) ([]BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	after := uint64(0)
	if lastID != "" {
		b, ok := m.blocksByID[lastID]
		if !ok {
			return nil, ErrNotFound
		}
		after = b.Height
	}

	var out []BlockRecord
	for h := after + 1; h <= m.lastHeight && len(out) < limit; h++ {
		if b, ok := m.blocksByHeight[h]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) GetBlocksBetweenHeights(fromHeight, toHeight uint64, limit int) ([]BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []BlockRecord
	for h := fromHeight + 1; h <= toHeight && len(out) < limit; h++ {
		if b, ok := m.blocksByHeight[h]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) GetBlockAtOrBeforeTimestamp(timestamp int64) (BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best BlockRecord
	found := false
	for _, b := range m.blocksByID {
		if b.Timestamp <= timestamp && (!found || b.Height > best.Height) {
			best = b
			found = true
		}
	}
	if !found {
		return BlockRecord{}, ErrNotFound
	}
	return best, nil
}

func (m *Memory) FindCommonBlock(ids []string) (BlockRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range ids {
		if b, ok := m.blocksByID[id]; ok {
			return b, nil
		}
	}
	return BlockRecord{}, ErrNotFound
}

func (m *Memory) MaxHeight() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeight, nil
}

func (m *Memory) GetTxByID(id string) (TxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.txsByID[id]
	if !ok {
		return TxRecord{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) GetTxsForBlock(blockID string) ([]TxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.txsByBlock[blockID]
	out := make([]TxRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.txsByID[id])
	}
	return out, nil
}

func (m *Memory) GetTxsBySender(address string, fromTimestamp int64, limit int) ([]TxRecord, error) {
	return m.filterTxs(func(t TxRecord) bool {
		return strings.EqualFold(t.Tx.SenderID, address) && t.Tx.Timestamp >= fromTimestamp
	}, limit)
}

func (m *Memory) GetTxsByRecipient(address string, fromTimestamp int64, limit int) ([]TxRecord, error) {
	return m.filterTxs(func(t TxRecord) bool {
		return strings.EqualFold(t.Tx.RecipientID, address) && t.Tx.Timestamp >= fromTimestamp
	}, limit)
}

func (m *Memory) filterTxs(pred func(TxRecord) bool, limit int) ([]TxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []TxRecord
	for _, t := range m.txsByID {
		if pred(t) {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Tx.Timestamp < out[j].Tx.Timestamp })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetAccount(address string) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[normalize(address)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) PutAccountDirect(a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[normalize(a.Address)] = a
	return nil
}

func (m *Memory) GetMultisigMembers(walletAddress string) ([]MultisigMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.members[normalize(walletAddress)], nil
}

func (m *Memory) GetRoundRewards(round uint64) ([]RoundReward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rewards[round], nil
}

// TopVotedDelegates returns the limit highest-VoteWeight delegate accounts
// from account state.
func (m *Memory) TopVotedDelegates(limit int) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var delegates []Account
	for _, a := range m.accounts {
		if a.IsDelegate {
			delegates = append(delegates, a)
		}
	}

	sort.Slice(delegates, func(i, j int) bool {
		if delegates[i].VoteWeight != delegates[j].VoteWeight {
			return delegates[i].VoteWeight > delegates[j].VoteWeight
		}
		return delegates[i].PublicKey < delegates[j].PublicKey
	})

	if limit > 0 && len(delegates) > limit {
		delegates = delegates[:limit]
	}
	return delegates, nil
}
