package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v3"
)

// Badger is a Store implementation backed by a Badger key-value database.
// It gives the node binary a real persistence layer without pulling in an
// actual SQL driver: the relational store is an external collaborator this
// module only needs typed entity access to, and Badger's prefix-scan
// iterators give us that over height-ordered keys.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (creating if absent) a Badger database at dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}

	return &Badger{db: db}, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// Key layout: fixed prefixes plus, for blocks, a big-endian height suffix so
// a prefix scan naturally walks the chain in height order.
const (
	prefixBlockByHeight = "b/h/"
	prefixBlockByID     = "b/i/"
	prefixTx            = "t/i/"
	prefixTxByBlock     = "t/b/"
	prefixAccount       = "a/"
	prefixMultisig      = "m/"
	prefixRoundReward   = "r/"
)

func heightKey(height uint64) []byte {
	buf := make([]byte, len(prefixBlockByHeight)+8)
	copy(buf, prefixBlockByHeight)
	binary.BigEndian.PutUint64(buf[len(prefixBlockByHeight):], height)
	return buf
}

func idKey(prefix, id string) []byte {
	return []byte(prefix + id)
}

// =============================================================================
// Tx

type badgerTx struct {
	store *Badger
	txn   *badger.Txn
}

func (b *Badger) Begin() (Tx, error) {
	return &badgerTx{store: b, txn: b.db.NewTransaction(true)}, nil
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func (t *badgerTx) PutBlock(rec BlockRecord) error {
	if err := putJSON(t.txn, heightKey(rec.Height), rec); err != nil {
		return err
	}
	return t.txn.Set(idKey(prefixBlockByID, rec.ID), heightKey(rec.Height))
}

func (t *badgerTx) PutTx(rec TxRecord) error {
	if err := putJSON(t.txn, idKey(prefixTx, rec.ID), rec); err != nil {
		return err
	}
	blockIdx := idKey(prefixTxByBlock, rec.BlockID+"/"+rec.ID)
	return t.txn.Set(blockIdx, []byte(rec.ID))
}

func (t *badgerTx) DeleteBlock(id string) error {
	hk, err := t.txn.Get(idKey(prefixBlockByID, id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	}
	var key []byte
	if err := hk.Value(func(v []byte) error { key = append([]byte{}, v...); return nil }); err != nil {
		return err
	}
	if err := t.txn.Delete(key); err != nil {
		return err
	}
	return t.txn.Delete(idKey(prefixBlockByID, id))
}

func (t *badgerTx) DeleteTxsForBlock(blockID string) error {
	prefix := []byte(prefixTxByBlock + blockID + "/")
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var ids [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var id []byte
		if err := item.Value(func(v []byte) error { id = append([]byte{}, v...); return nil }); err != nil {
			return err
		}
		ids = append(ids, id)
		if err := t.txn.Delete(append([]byte{}, item.Key()...)); err != nil {
			return err
		}
	}

	for _, id := range ids {
		if err := t.txn.Delete(idKey(prefixTx, string(id))); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTx) PutAccount(a Account) error {
	return putJSON(t.txn, idKey(prefixAccount, normalize(a.Address)), a)
}

func (t *badgerTx) PutMultisigMember(m MultisigMember) error {
	key := idKey(prefixMultisig, normalize(m.WalletAddress)+"/"+m.MemberPublicKey)
	return putJSON(t.txn, key, m)
}

func (t *badgerTx) PutRoundReward(r RoundReward) error {
	key := fmt.Sprintf("%s%020d/%s", prefixRoundReward, r.Round, r.DelegatePublicKey)
	return putJSON(t.txn, []byte(key), r)
}

func (t *badgerTx) Commit() error {
	return t.txn.Commit()
}

func (t *badgerTx) Rollback() error {
	t.txn.Discard()
	return nil
}

// =============================================================================
// Reads

func (b *Badger) getJSON(key []byte, v any) error {
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(data []byte) error {
			return json.Unmarshal(data, v)
		})
	})
}

func (b *Badger) GetBlockByHeight(height uint64) (BlockRecord, error) {
	var rec BlockRecord
	err := b.getJSON(heightKey(height), &rec)
	return rec, err
}

func (b *Badger) GetBlockByID(id string) (BlockRecord, error) {
	var key []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(prefixBlockByID, id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error { key = append([]byte{}, v...); return nil })
	})
	if err != nil {
		return BlockRecord{}, err
	}

	var rec BlockRecord
	if err := b.getJSON(key, &rec); err != nil {
		return BlockRecord{}, err
	}
	return rec, nil
}

func (b *Badger) GetLastBlock() (BlockRecord, error) {
	var rec BlockRecord
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(prefixBlockByHeight), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(prefixBlockByHeight)); it.Next() {
			item := it.Item()
			return item.Value(func(v []byte) error {
				found = true
				return json.Unmarshal(v, &rec)
			})
		}
		return nil
	})
	if err != nil {
		return BlockRecord{}, err
	}
	if !found {
		return BlockRecord{}, ErrNotFound
	}
	return rec, nil
}

func (b *Badger) MaxHeight() (uint64, error) {
	rec, err := b.GetLastBlock()
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Height, nil
}

func (b *Badger) GetBlocksAfter(lastID string, limit int) ([]BlockRecord, error) {
	after := uint64(0)
	if lastID != "" {
		rec, err := b.GetBlockByID(lastID)
		if err != nil {
			return nil, err
		}
		after = rec.Height
	}

	var out []BlockRecord
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(heightKey(after + 1)); it.ValidForPrefix([]byte(prefixBlockByHeight)) && len(out) < limit; it.Next() {
			var rec BlockRecord
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (b *Badger) GetBlocksBetweenHeights(fromHeight, toHeight uint64, limit int) ([]BlockRecord, error) {
	var out []BlockRecord
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(heightKey(fromHeight + 1)); it.ValidForPrefix([]byte(prefixBlockByHeight)) && len(out) < limit; it.Next() {
			var rec BlockRecord
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return err
			}
			if rec.Height > toHeight {
				break
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (b *Badger) GetBlockAtOrBeforeTimestamp(timestamp int64) (BlockRecord, error) {
	var best BlockRecord
	found := false

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(prefixBlockByHeight), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(prefixBlockByHeight)); it.Next() {
			var rec BlockRecord
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return err
			}
			if rec.Timestamp <= timestamp {
				best = rec
				found = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return BlockRecord{}, err
	}
	if !found {
		return BlockRecord{}, ErrNotFound
	}
	return best, nil
}

func (b *Badger) FindCommonBlock(ids []string) (BlockRecord, error) {
	for _, id := range ids {
		rec, err := b.GetBlockByID(id)
		if err == nil {
			return rec, nil
		}
		if err != ErrNotFound {
			return BlockRecord{}, err
		}
	}
	return BlockRecord{}, ErrNotFound
}

func (b *Badger) GetTxByID(id string) (TxRecord, error) {
	var rec TxRecord
	err := b.getJSON(idKey(prefixTx, id), &rec)
	return rec, err
}

func (b *Badger) GetTxsForBlock(blockID string) ([]TxRecord, error) {
	prefix := []byte(prefixTxByBlock + blockID + "/")

	var out []TxRecord
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(v []byte) error { id = string(v); return nil }); err != nil {
				return err
			}
			item, err := txn.Get(idKey(prefixTx, id))
			if err != nil {
				return err
			}
			var rec TxRecord
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (b *Badger) txsBy(matches func(TxRecord) bool, fromTimestamp int64, limit int) ([]TxRecord, error) {
	var out []TxRecord
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixTx)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && (limit <= 0 || len(out) < limit); it.Next() {
			var rec TxRecord
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return err
			}
			if rec.Tx.Timestamp >= fromTimestamp && matches(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, err
}

func (b *Badger) GetTxsBySender(address string, fromTimestamp int64, limit int) ([]TxRecord, error) {
	return b.txsBy(func(t TxRecord) bool { return strings.EqualFold(t.Tx.SenderID, address) }, fromTimestamp, limit)
}

func (b *Badger) GetTxsByRecipient(address string, fromTimestamp int64, limit int) ([]TxRecord, error) {
	return b.txsBy(func(t TxRecord) bool { return strings.EqualFold(t.Tx.RecipientID, address) }, fromTimestamp, limit)
}

func (b *Badger) GetAccount(address string) (Account, error) {
	var a Account
	err := b.getJSON(idKey(prefixAccount, normalize(address)), &a)
	return a, err
}

func (b *Badger) PutAccountDirect(a Account) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, idKey(prefixAccount, normalize(a.Address)), a)
	})
}

func (b *Badger) GetMultisigMembers(walletAddress string) ([]MultisigMember, error) {
	prefix := []byte(prefixMultisig + normalize(walletAddress) + "/")

	var out []MultisigMember
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m MultisigMember
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &m) }); err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}

func (b *Badger) GetRoundRewards(round uint64) ([]RoundReward, error) {
	prefix := []byte(fmt.Sprintf("%s%020d/", prefixRoundReward, round))

	var out []RoundReward
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r RoundReward
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &r) }); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (b *Badger) TopVotedDelegates(limit int) ([]Account, error) {
	var delegates []Account
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixAccount)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var a Account
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &a) }); err != nil {
				return err
			}
			if a.IsDelegate {
				delegates = append(delegates, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortAccountsByVote(delegates)
	if limit > 0 && len(delegates) > limit {
		delegates = delegates[:limit]
	}
	return delegates, nil
}

func sortAccountsByVote(accts []Account) {
	for i := 1; i < len(accts); i++ {
		for j := i; j > 0; j-- {
			a, b := accts[j-1], accts[j]
			less := b.VoteWeight > a.VoteWeight || (b.VoteWeight == a.VoteWeight && b.PublicKey < a.PublicKey)
			if !less {
				break
			}
			accts[j-1], accts[j] = accts[j], accts[j-1]
		}
	}
}
