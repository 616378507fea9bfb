package slots_test

import (
	"testing"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/slots"
)

func TestCalcRound(t *testing.T) {
	cfg := slots.New(time.Unix(0, 0), 10*time.Second, 101)

	tests := []struct {
		height uint64
		round  uint64
	}{
		{height: 1, round: 1},
		{height: 101, round: 1},
		{height: 102, round: 2},
		{height: 202, round: 2},
		{height: 203, round: 3},
	}

	for _, tt := range tests {
		got := cfg.CalcRound(tt.height)
		if got != tt.round {
			t.Errorf("CalcRound(%d) = %d, want %d", tt.height, got, tt.round)
		}
	}
}

func TestGetSlotNumber(t *testing.T) {
	epoch := time.Unix(1000, 0)
	cfg := slots.New(epoch, 10*time.Second, 101)

	got := cfg.GetSlotNumber(35)
	if got != 3 {
		t.Errorf("GetSlotNumber(35) = %d, want 3", got)
	}
}

func TestGetSlotTimeRoundTrip(t *testing.T) {
	cfg := slots.New(time.Unix(0, 0), 10*time.Second, 101)

	for slot := int64(0); slot < 50; slot++ {
		epochTime := cfg.GetSlotTime(slot)
		if got := cfg.GetSlotNumber(epochTime); got != slot {
			t.Errorf("GetSlotNumber(GetSlotTime(%d)) = %d, want %d", slot, got, slot)
		}
	}
}

func TestDelegateIndexForSlotWraps(t *testing.T) {
	cfg := slots.New(time.Unix(0, 0), 10*time.Second, 101)

	if got := cfg.DelegateIndexForSlot(101); got != 0 {
		t.Errorf("DelegateIndexForSlot(101) = %d, want 0", got)
	}
	if got := cfg.DelegateIndexForSlot(202); got != 0 {
		t.Errorf("DelegateIndexForSlot(202) = %d, want 0", got)
	}
}
