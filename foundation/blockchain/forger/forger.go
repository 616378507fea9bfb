// Package forger runs the slot-aligned block production loop: on every
// slot boundary it checks whether one of the keys it holds is the
// delegate assigned to that slot, and if so builds, signs, and commits a
// new block.
//
// Shaped after a fixed-cadence selection loop that ticks once per cycle,
// asks a selection function who mines next, and if it's this node spins a
// cancellable mining goroutine pair (one goroutine mines, one goroutine
// waits to cancel it), generalized from "compare selected host to my own
// host" into "look up whether I hold the assigned delegate's private key",
// since a DPoS slot's forger is identified by public key rather than by
// network address.
package forger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/chainstate"
	"github.com/ardanlabs/dposchain/foundation/blockchain/rounds"
	"github.com/ardanlabs/dposchain/foundation/blockchain/sequence"
	"github.com/ardanlabs/dposchain/foundation/blockchain/signature"
	"github.com/ardanlabs/dposchain/foundation/blockchain/slots"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/blockchain/txpool"
)

// ErrNoTransactions is returned when a forging attempt finds no ready
// transactions in the pool. ForceForge returns it to its caller; the
// periodic forging loop only logs it.
var ErrNoTransactions = errors.New("forger: no ready transactions")

// ErrNotSelected is returned by ForceForge when this Forger does not hold
// the key of the delegate assigned to the current slot.
var ErrNotSelected = errors.New("forger: not the delegate assigned to this slot")

// EventHandler receives diagnostic notices the way chainstate's
// EventHandler does.
type EventHandler func(format string, args ...any)

// Secret is one delegate's encrypted key material plus the passphrase
// needed to unlock it, as loaded from the secrets file at boot.
type Secret struct {
	Mnemonic   signature.EncryptedSecret
	Passphrase string
}

// Config carries everything the forging loop needs.
type Config struct {
	ModuleAlias     string
	ActiveDelegates int
	MaxTransactions int
	Clock           slots.Config
	Chain           *chainstate.Chain
	Pool            *txpool.Pool
	Store           store.Store
	Sequencer       *sequence.Sequence
	EvHandler       EventHandler
}

type delegateKey struct {
	key     *ecdsa.PrivateKey
	enabled bool
}

// Forger owns the set of unlocked delegate keys and the ticking loop that
// checks, once per slot, whether one of them is due to forge.
type Forger struct {
	cfg Config

	mu        sync.RWMutex
	delegates map[string]*delegateKey

	shut        chan struct{}
	cancelForge chan struct{}
	wg          sync.WaitGroup
}

// New constructs a Forger. Call LoadDelegate for each key before Run, or
// the loop will simply find nothing to forge with.
func New(cfg Config) *Forger {
	if cfg.EvHandler == nil {
		cfg.EvHandler = func(format string, args ...any) {}
	}

	return &Forger{
		cfg:         cfg,
		delegates:   make(map[string]*delegateKey),
		shut:        make(chan struct{}),
		cancelForge: make(chan struct{}, 1),
	}
}

// LoadDelegate decrypts secret under passphrase, derives the delegate's
// public key, and registers it enabled. A wrong passphrase returns the
// decryption error and registers nothing.
func (f *Forger) LoadDelegate(secret Secret) (publicKey string, err error) {
	plaintext, err := signature.DecryptSecret(secret.Mnemonic, secret.Passphrase)
	if err != nil {
		return "", chainerrors.New(chainerrors.Config, err)
	}

	key, err := signature.KeyFromMnemonic(plaintext, "")
	if err != nil {
		return "", chainerrors.New(chainerrors.Config, err)
	}

	publicKey = signature.PublicKeyHex(&key.PublicKey)

	f.mu.Lock()
	f.delegates[publicKey] = &delegateKey{key: key, enabled: true}
	f.mu.Unlock()

	return publicKey, nil
}

// SetForgingEnabled toggles whether publicKey's key is used when its slot
// comes up, without discarding the unlocked key. A delegate operator can
// disable forging ahead of planned maintenance and re-enable it later
// without re-entering the passphrase.
func (f *Forger) SetForgingEnabled(publicKey string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if d, ok := f.delegates[publicKey]; ok {
		d.enabled = enabled
	}
}

// Delegates returns the public keys this Forger holds unlocked keys for.
func (f *Forger) Delegates() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.delegates))
	for k := range f.delegates {
		keys = append(keys, k)
	}
	return keys
}

func (f *Forger) lookup(publicKey string) (*ecdsa.PrivateKey, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	d, ok := f.delegates[publicKey]
	if !ok || !d.enabled {
		return nil, false
	}
	return d.key, true
}

// Run starts the ticking loop on its own goroutine and returns
// immediately; call Shutdown to stop it.
func (f *Forger) Run() {
	f.wg.Add(1)
	go f.forgeOperations()
}

// Shutdown stops the forging loop and waits for the in-flight attempt, if
// any, to finish or be cancelled.
func (f *Forger) Shutdown() {
	f.cfg.EvHandler("forger: shutdown: started")
	defer f.cfg.EvHandler("forger: shutdown: completed")

	select {
	case f.cancelForge <- struct{}{}:
	default:
	}

	close(f.shut)
	f.wg.Wait()
}

func (f *Forger) forgeOperations() {
	defer f.wg.Done()

	f.cfg.EvHandler("forger: forgeOperations: G started")
	defer f.cfg.EvHandler("forger: forgeOperations: G completed")

	ticker := time.NewTicker(f.cfg.Clock.BlockTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.runForgeOperation()
		case <-f.shut:
			f.cfg.EvHandler("forger: forgeOperations: received shut signal")
			return
		}
	}
}

// runForgeOperation checks whether this forger holds the key assigned to
// the current slot and, if so, builds and commits a block. It mirrors a
// cancellable mining attempt: one goroutine does the work, a second
// exists solely so Shutdown can interrupt it mid-flight.
func (f *Forger) runForgeOperation() {
	f.cfg.EvHandler("forger: runForgeOperation: started")
	defer f.cfg.EvHandler("forger: runForgeOperation: completed")

	select {
	case <-f.cancelForge:
		f.cfg.EvHandler("forger: runForgeOperation: drained cancel channel")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case <-f.cancelForge:
			f.cfg.EvHandler("forger: runForgeOperation: CANCEL: requested")
		case <-ctx.Done():
		}
	}()

	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		if err := f.ForceForge(ctx); err != nil {
			switch {
			case errors.Is(err, ErrNoTransactions):
				f.cfg.EvHandler("forger: runForgeOperation: WARNING: no ready transactions")
			case errors.Is(err, ErrNotSelected):
			case ctx.Err() != nil:
				f.cfg.EvHandler("forger: runForgeOperation: CANCEL: complete")
			default:
				f.cfg.EvHandler("forger: runForgeOperation: ERROR: %s", err)
			}
		}
	}()

	wg.Wait()
}

// ForceForge resolves the delegate assigned to the current slot and, if
// this Forger holds that delegate's unlocked key, builds, signs, and
// commits a block immediately rather than waiting for the next tick.
// Exposed directly so an operator (or a test) can trigger an attempt
// without waiting out the block interval.
func (f *Forger) ForceForge(ctx context.Context) error {
	slot := f.cfg.Clock.GetNextSlot() - 1

	publicKey, err := f.delegateForSlot(slot)
	if err != nil {
		return err
	}

	key, ok := f.lookup(publicKey)
	if !ok {
		return ErrNotSelected
	}

	return f.forge(ctx, publicKey, key, slot)
}

// delegateForSlot resolves the delegate assigned to slot: the round it
// falls in, that round's schedule (seeded from the last block before the
// round began, using the current top-voted delegates), and the index
// within the schedule slot maps to.
func (f *Forger) delegateForSlot(slot int64) (string, error) {
	nextHeight := f.cfg.Chain.Height() + 1
	round := f.cfg.Clock.CalcRound(nextHeight)

	candidates, err := f.cfg.Store.TopVotedDelegates(f.cfg.ActiveDelegates)
	if err != nil {
		return "", chainerrors.New(chainerrors.Persistence, err)
	}

	voted := make([]rounds.VotedDelegate, len(candidates))
	for i, a := range candidates {
		voted[i] = rounds.VotedDelegate{PublicKey: a.PublicKey, VoteWeight: a.VoteWeight}
	}

	schedule, err := rounds.GenerateList(round, f.cfg.ActiveDelegates, voted, f.cfg.Chain.LastBlockID(), nil)
	if err != nil {
		return "", err
	}

	idx := rounds.DelegateIndexForSlot(slot, f.cfg.ActiveDelegates)
	return schedule[idx], nil
}

// forge builds a block out of the pool's ready transactions, signs it
// with key, and commits it through the same append path a network-
// received block uses, routed through the Sequencer so it serializes
// against every other chain mutation.
func (f *Forger) forge(ctx context.Context, publicKey string, key *ecdsa.PrivateKey, slot int64) error {
	txs := f.cfg.Pool.GetMergedTransactionList(false, f.cfg.MaxTransactions)
	if len(txs) == 0 {
		return ErrNoTransactions
	}

	last := f.cfg.Chain.LastBlock()
	timestamp := f.cfg.Clock.GetSlotTime(slot)

	block, err := chainstate.New(last.Height+1, last.ID, timestamp, publicKey, txs)
	if err != nil {
		return chainerrors.New(chainerrors.Validation, err)
	}

	sig, err := signature.Sign(block, key)
	if err != nil {
		return chainerrors.New(chainerrors.Config, err)
	}
	block.BlockSignature = sig

	task := func(taskCtx context.Context) (any, error) {
		return nil, f.cfg.Chain.ReceiveBlockFromNetwork(taskCtx, block, true)
	}

	if f.cfg.Sequencer != nil {
		_, err = f.cfg.Sequencer.Add(ctx, task)
		return err
	}

	_, err = task(ctx)
	return err
}
