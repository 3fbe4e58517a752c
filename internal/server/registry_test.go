package server

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func drain(outbox *Outbox) []string {
	var got []string
	for {
		select {
		case msg, ok := <-outbox.C():
			if !ok {
				return got
			}
			got = append(got, msg.String())
		default:
			return got
		}
	}
}

func TestRegistry_RegisterAndDeregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))

	alice := NewOutbox(4)
	req.NoError(registry.Register("127.0.0.1:1000", alice))
	req.Equal(1, registry.Len())

	err := registry.Register("127.0.0.1:1000", NewOutbox(4))
	req.ErrorIs(err, ErrDuplicatePeer)
	req.Equal(1, registry.Len())

	registry.Deregister("127.0.0.1:1000")
	req.Equal(0, registry.Len())
	req.False(alice.Offer(Chat{}), "deregistering must close the outbox")

	// Removing an absent identity is a no-op
	registry.Deregister("127.0.0.1:1000")
	req.Equal(0, registry.Len())
}

func TestRegistry_BroadcastSkipsOrigin(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))

	alice, bob, carol := NewOutbox(4), NewOutbox(4), NewOutbox(4)
	req.NoError(registry.Register("a", alice))
	req.NoError(registry.Register("b", bob))
	req.NoError(registry.Register("c", carol))

	registry.Broadcast("a", Chat{Sender: "alice", Content: "hi"})

	req.Empty(drain(alice))
	req.Equal([]string{"alice: hi"}, drain(bob))
	req.Equal([]string{"alice: hi"}, drain(carol))
}

func TestRegistry_BroadcastToEmptyRegistry(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Broadcast("nobody", Joined{Username: "ghost"})
	require.Equal(t, 0, registry.Len())
}

func TestRegistry_BroadcastPreservesOrderPerOrigin(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(nil)

	bob := NewOutbox(16)
	req.NoError(registry.Register("b", bob))

	for i := 0; i < 10; i++ {
		registry.Broadcast("a", Chat{Sender: "alice", Content: fmt.Sprint(i)})
	}

	got := drain(bob)
	req.Len(got, 10)
	for i, line := range got {
		req.Equal(fmt.Sprintf("alice: %d", i), line)
	}
}

func TestRegistry_EvictsFullOutbox(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))

	slow, fast := NewOutbox(1), NewOutbox(8)
	req.NoError(registry.Register("slow", slow))
	req.NoError(registry.Register("fast", fast))

	registry.Broadcast("x", Chat{Sender: "x", Content: "1"})
	registry.Broadcast("x", Chat{Sender: "x", Content: "2"})

	req.Equal(1, registry.Len(), "the slow peer must be evicted")
	req.Equal([]string{"x: 1", "x: 2"}, drain(fast))

	// The slow peer keeps what was queued before eviction, then sees a close
	msg, ok := <-slow.C()
	req.True(ok)
	req.Equal("x: 1", msg.String())
	_, ok = <-slow.C()
	req.False(ok)
}

func TestRegistry_EvictionDoesNotRemoveNewRegistration(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(nil)

	stale := NewOutbox(1)
	stale.Close()
	fresh := NewOutbox(1)
	req.NoError(registry.Register("peer", fresh))

	registry.evict([]lo.Entry[Identity, *Outbox]{{Key: "peer", Value: stale}})

	req.Equal(1, registry.Len())
	req.True(fresh.Offer(Chat{}))
}

func TestRegistry_ConcurrentBroadcastAndMembership(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := Identity(fmt.Sprintf("peer-%d", i))
			outbox := NewOutbox(1000)
			if err := registry.Register(id, outbox); err != nil {
				t.Errorf("register %s: %v", id, err)
				return
			}
			for j := 0; j < 50; j++ {
				registry.Broadcast(id, Chat{Sender: string(id), Content: fmt.Sprint(j)})
			}
			registry.Deregister(id)
		}(i)
	}
	wg.Wait()

	req.Equal(0, registry.Len())
}
