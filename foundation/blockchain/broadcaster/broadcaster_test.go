package broadcaster_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/dposchain/foundation/blockchain/broadcaster"
	"github.com/ardanlabs/dposchain/foundation/blockchain/peer"
)

const (
	success = "✓"
	failed  = "✗"
)

func TestEnqueueDeduplicates(t *testing.T) {
	t.Log("Given the need to dedup queued announcements by (api, id).")
	{
		peers := peer.NewSet()
		b := broadcaster.New(broadcaster.Config{}, peers, func(context.Context, peer.Peer, broadcaster.Announcement) error { return nil })

		b.Enqueue(broadcaster.Announcement{API: "postBlock", ID: "b1"})
		b.Enqueue(broadcaster.Announcement{API: "postBlock", ID: "b1"})
		b.Enqueue(broadcaster.Announcement{API: "postBlock", ID: "b2"})

		if b.Pending() != 2 {
			t.Fatalf("\t%s\tgot %d pending, want 2", failed, b.Pending())
		}
		t.Logf("\t%s\tShould dedup repeated (api, id) pairs.", success)
	}
}

func TestRunDrainsToSender(t *testing.T) {
	t.Log("Given a broadcaster with known peers and a queued announcement.")
	{
		peers := peer.NewSet()
		peers.Add(peer.New("peer-a"))
		peers.Add(peer.New("peer-b"))

		var mu sync.Mutex
		var sent []string

		send := func(_ context.Context, p peer.Peer, a broadcaster.Announcement) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, p.Host+":"+a.ID)
			return nil
		}

		b := broadcaster.New(broadcaster.Config{Interval: 20 * time.Millisecond, ReleaseLimit: 10}, peers, send)
		b.Enqueue(broadcaster.Announcement{API: "postBlock", ID: "b1"})

		b.Run("self")
		time.Sleep(100 * time.Millisecond)
		b.Shutdown()

		mu.Lock()
		defer mu.Unlock()
		if len(sent) != 2 {
			t.Fatalf("\t%s\tgot %d sends, want 2 (one per peer), got %v", failed, len(sent), sent)
		}
		t.Logf("\t%s\tShould deliver the queued announcement to every known peer.", success)

		if b.Pending() != 0 {
			t.Fatalf("\t%s\tShould have drained the queue.", failed)
		}
		t.Logf("\t%s\tShould have drained the queue.", success)
	}
}
