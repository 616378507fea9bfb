package sequence_test

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ardanlabs/dposchain/foundation/blockchain/sequence"
)

func TestOrdering(t *testing.T) {
	s := sequence.New(sequence.Config{Backlog: 10})
	defer s.Shutdown()

	var order []int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			s.Add(context.Background(), func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if len(order) != 20 {
		t.Fatalf("got %d tasks run, want 20", len(order))
	}
}

func TestAddReturnsResult(t *testing.T) {
	s := sequence.New(sequence.Config{})
	defer s.Shutdown()

	v, err := s.Add(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v.(int) != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

func TestShutdownRejectsPending(t *testing.T) {
	s := sequence.New(sequence.Config{Backlog: 1})

	block := make(chan struct{})
	started := make(chan struct{})

	go s.Add(context.Background(), func(ctx context.Context) (any, error) {
		close(started)
		<-block
		return nil, nil
	})
	<-started

	var gotErr atomic.Value
	done := make(chan struct{})
	go func() {
		_, err := s.Add(context.Background(), func(ctx context.Context) (any, error) {
			return nil, nil
		})
		gotErr.Store(err)
		close(done)
	}()

	for s.Pending() == 0 {
		runtime.Gosched()
	}

	shutdownDone := make(chan struct{})
	go func() {
		s.Shutdown()
		close(shutdownDone)
	}()

	// The queue is full and its consumer is blocked, so this Add returns
	// only once Shutdown has closed the sequence.
	s.Add(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})

	close(block)
	<-done
	<-shutdownDone

	if err, _ := gotErr.Load().(error); err != sequence.ErrShuttingDown {
		t.Fatalf("got %v, want ErrShuttingDown", err)
	}
}
