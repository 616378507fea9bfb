// Package slots provides pure time arithmetic for mapping wall-clock time
// onto the fixed slot/round clock the chain forges against.
package slots

import "time"

// Config carries the constants slot arithmetic is computed against. It is
// constructed once at boot and passed by reference into every consumer; no
// package level state is mutated after that (see SPEC_FULL.md, "Global
// constants/exceptions").
type Config struct {
	// EpochTime is the instant slot 0 began.
	EpochTime time.Time

	// BlockTime is the width of one slot.
	BlockTime time.Duration

	// ActiveDelegates is the number of delegates in a round, and so the
	// number of slots a round spans.
	ActiveDelegates int
}

// New constructs a slot Config, defaulting BlockTime/ActiveDelegates when
// zero so a Config built from partially populated configuration still
// behaves sanely.
func New(epochTime time.Time, blockTime time.Duration, activeDelegates int) Config {
	if blockTime <= 0 {
		blockTime = 10 * time.Second
	}
	if activeDelegates <= 0 {
		activeDelegates = 101
	}

	return Config{
		EpochTime:       epochTime,
		BlockTime:       blockTime,
		ActiveDelegates: activeDelegates,
	}
}

// GetEpochTime returns seconds elapsed since the configured epoch for the
// given wall-clock time. A zero time.Time means "now".
func (c Config) GetEpochTime(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now().UTC()
	}

	return int64(t.Sub(c.EpochTime) / time.Second)
}

// GetTime is an alias for GetEpochTime kept to mirror the source's split
// between getTime and getEpochTime, which in the source differ only by
// whether a millisecond argument is already epoch relative.
func (c Config) GetTime(t time.Time) int64 {
	return c.GetEpochTime(t)
}

// GetRealTime converts epoch-relative seconds back into wall-clock time.
func (c Config) GetRealTime(epochSeconds int64) time.Time {
	return c.EpochTime.Add(time.Duration(epochSeconds) * time.Second)
}

// GetSlotNumber returns the slot index for the given epoch-relative seconds.
func (c Config) GetSlotNumber(epochTime int64) int64 {
	return epochTime / int64(c.BlockTime/time.Second)
}

// GetSlotTime returns the epoch-relative seconds at which the given slot
// begins.
func (c Config) GetSlotTime(slot int64) int64 {
	return slot * int64(c.BlockTime/time.Second)
}

// GetNextSlot returns the slot following the current wall-clock slot.
func (c Config) GetNextSlot() int64 {
	return c.GetSlotNumber(c.GetEpochTime(time.Time{})) + 1
}

// GetLastSlot returns nextSlot plus ActiveDelegates, the slot one full
// round of slots after nextSlot.
func (c Config) GetLastSlot(nextSlot int64) int64 {
	return nextSlot + int64(c.ActiveDelegates)
}

// CalcRound returns the round a block at the given height belongs to.
// Round = ceil(height / ActiveDelegates), and height 1 (genesis) is round 1.
func (c Config) CalcRound(height uint64) uint64 {
	if height == 0 {
		return 0
	}

	n := uint64(c.ActiveDelegates)
	return (height + n - 1) / n
}

// DelegateIndexForSlot returns the index into a round's shuffled delegate
// list that is assigned to forge the given slot.
func (c Config) DelegateIndexForSlot(slot int64) int {
	n := int64(c.ActiveDelegates)
	idx := slot % n
	if idx < 0 {
		idx += n
	}
	return int(idx)
}

// SlotNumberForBlockTime is a convenience wrapper that computes the slot a
// block's recorded timestamp falls into.
func (c Config) SlotNumberForBlockTime(blockTimestamp int64) int64 {
	return c.GetSlotNumber(blockTimestamp)
}
