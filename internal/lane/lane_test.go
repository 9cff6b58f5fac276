package lane

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubmit_SameKeyInOrder(t *testing.T) {
	m := NewManager(context.Background(), ManagerConfig{})
	defer m.Stop()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		if err := m.Submit("server1", func(context.Context) {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d (order %v)", i, v, i, got)
		}
	}
}

func TestSubmit_SameKeyNeverConcurrent(t *testing.T) {
	m := NewManager(context.Background(), ManagerConfig{})
	defer m.Stop()

	var running, maxSeen atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		m.Submit("server1", func(context.Context) {
			defer wg.Done()
			n := running.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxSeen.Load())
	}
}

func TestSubmit_KeysRunInParallel(t *testing.T) {
	m := NewManager(context.Background(), ManagerConfig{})
	defer m.Stop()

	release := make(chan struct{})
	started := make(chan string, 2)
	for _, key := range []string{"a", "b"} {
		m.Submit(key, func(context.Context) {
			started <- key
			<-release
		})
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("lanes did not run in parallel")
		}
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	close(release)
}

func TestIdleLaneIsRemoved(t *testing.T) {
	m := NewManager(context.Background(), ManagerConfig{IdleTimeout: 20 * time.Millisecond})
	defer m.Stop()

	done := make(chan struct{})
	m.Submit("server1", func(context.Context) { close(done) })
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for m.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("idle lane was not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The key gets a fresh lane afterwards.
	again := make(chan struct{})
	if err := m.Submit("server1", func(context.Context) { close(again) }); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	<-again
}

func TestStop_CancelsAndRejects(t *testing.T) {
	m := NewManager(context.Background(), ManagerConfig{})

	cancelled := make(chan struct{})
	started := make(chan struct{})
	m.Submit("server1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})
	<-started
	m.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("running task was not cancelled")
	}
	if err := m.Submit("server1", func(context.Context) {}); err != ErrStopped {
		t.Errorf("Submit() after Stop = %v, want ErrStopped", err)
	}
}
