// Package rounds generates the per-round delegate forging schedule and
// settles fees when a round closes.
//
// Shaped after a selection helper that hashes the latest block's hash with
// fnv-32a and picks one index into a sorted peer list to decide who mines
// next, generalized from "pick one winner" into "shuffle the whole
// delegate list", using the same seed-from-last-block-hash idea so every
// node computing the schedule for a round agrees on it without any further
// coordination.
package rounds

import (
	"encoding/binary"
	"hash/fnv"
	"sort"

	"github.com/ardanlabs/dposchain/foundation/blockchain/chainerrors"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
)

// VotedDelegate is the subset of account state the schedule generator
// needs per candidate.
type VotedDelegate struct {
	PublicKey  string
	VoteWeight uint64
}

// GenerateList returns the ACTIVE_DELEGATES-sized, round-shuffled delegate
// schedule for round, given the top-voted candidates (already sorted by
// vote weight descending, as store.TopVotedDelegates returns) and the seed
// (the previous round's last block id).
//
// source lets a caller override the candidate list entirely — a replay/
// rebuild hook — instead of using the store's current vote tally.
func GenerateList(round uint64, activeDelegates int, candidates []VotedDelegate, seed string, source func() ([]VotedDelegate, error)) ([]string, error) {
	if source != nil {
		overridden, err := source()
		if err != nil {
			return nil, chainerrors.New(chainerrors.State, err)
		}
		candidates = overridden
	}

	if len(candidates) == 0 {
		return nil, chainerrors.Newf(chainerrors.Consensus, "rounds: no delegate candidates for round %d", round)
	}

	pubKeys := make([]string, 0, len(candidates))
	for _, c := range candidates {
		pubKeys = append(pubKeys, c.PublicKey)
	}

	// Pad or trim to exactly activeDelegates by cycling the candidate list,
	// the way a small testnet with fewer real delegates than
	// ACTIVE_DELEGATES still needs a full schedule.
	schedule := make([]string, activeDelegates)
	for i := range schedule {
		schedule[i] = pubKeys[i%len(pubKeys)]
	}

	shuffle(schedule, seed)
	return schedule, nil
}

// shuffle performs a deterministic Fisher-Yates shuffle of list, seeded
// from seed (a block id): fnv-32a over the seed bytes, then used as the
// PRNG state advanced by repeated hashing.
func shuffle(list []string, seed string) {
	state := fnvSum(seed)

	for i := len(list) - 1; i > 0; i-- {
		state = nextState(state)
		j := int(state % uint32(i+1))
		list[i], list[j] = list[j], list[i]
	}
}

func fnvSum(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func nextState(state uint32) uint32 {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, state)
	h := fnv.New32a()
	h.Write(buf)
	return h.Sum32()
}

// DelegateIndexForSlot returns the index into a round schedule for slot:
// shuffledDelegates[slot mod activeDelegates].
func DelegateIndexForSlot(slot int64, activeDelegates int) int {
	idx := int(slot % int64(activeDelegates))
	if idx < 0 {
		idx += activeDelegates
	}
	return idx
}

// Settlement is one round's worth of reward distribution, computed by
// Settle and written to the store by the caller inside the same Sequence
// task that appends the round-closing block.
type Settlement struct {
	Round   uint64
	Rewards []store.RoundReward
}

// Settle computes the per-delegate fee/reward distribution for a closed
// round: each delegate receives sum(fees)/activeDelegates for their
// produced blocks (remainder to the last forger) plus the block reward
// already paid at append time. producedBlocks maps each delegate's public
// key to the number of blocks they produced and the reward already
// credited for those blocks; totalFees is the sum of every transaction fee
// collected across the round.
func Settle(round uint64, activeDelegates int, producedBlocks map[string]ProducedBlocks, totalFees uint64, lastForgerPublicKey string) Settlement {
	share := totalFees / uint64(activeDelegates)
	remainder := totalFees - share*uint64(activeDelegates)

	keys := make([]string, 0, len(producedBlocks))
	for k := range producedBlocks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rewards := make([]store.RoundReward, 0, len(keys))
	for _, pub := range keys {
		pb := producedBlocks[pub]
		fee := share * uint64(pb.Count)
		if pub == lastForgerPublicKey {
			fee += remainder
		}

		rewards = append(rewards, store.RoundReward{
			Round:             round,
			DelegatePublicKey: pub,
			Fees:              fee,
			Reward:            pb.Reward,
		})
	}

	return Settlement{Round: round, Rewards: rewards}
}

// ProducedBlocks tallies one delegate's contribution to a round, input to
// Settle.
type ProducedBlocks struct {
	Count  int
	Reward uint64
}
