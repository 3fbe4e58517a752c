// Package server coordinates peer registration, message broadcast, and
// slow-peer eviction for the chat relay via the Registry type.
package server

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Registry holds the live peers and fans messages out to them.
// The mutex only guards the map; it is never held while offering to an outbox,
// so a stuck peer cannot delay delivery to the others.
type Registry struct {
	mu    sync.RWMutex
	peers map[Identity]*Outbox
	log   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		peers: make(map[Identity]*Outbox),
		log:   log,
	}
}

// Register inserts id → outbox. It fails with ErrDuplicatePeer when id is
// already present.
func (r *Registry) Register(id Identity, outbox *Outbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[id]; exists {
		return fmt.Errorf("register %s: %w", id, ErrDuplicatePeer)
	}
	r.peers[id] = outbox
	r.log.Debug("Peer registered", "peer", id, "peers", len(r.peers))
	return nil
}

// Deregister removes id and closes its outbox. Removing an absent identity is
// a no-op, since a disconnect may race an eviction by Broadcast.
func (r *Registry) Deregister(id Identity) {
	r.remove(id, nil)
}

// Broadcast delivers msg to every registered peer except origin. A peer whose
// outbox is full or closed is evicted and misses the message.
func (r *Registry) Broadcast(origin Identity, msg Message) {
	targets := r.snapshot(origin)

	var failed []lo.Entry[Identity, *Outbox]
	for _, target := range targets {
		if !target.Value.Offer(msg) {
			failed = append(failed, target)
		}
	}

	r.evict(failed)
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// snapshot returns a copy of every entry except origin
func (r *Registry) snapshot(origin Identity) []lo.Entry[Identity, *Outbox] {
	r.mu.RLock()
	entries := lo.Entries(r.peers)
	r.mu.RUnlock()

	return lo.Filter(entries, func(e lo.Entry[Identity, *Outbox], _ int) bool {
		return e.Key != origin
	})
}

// evict removes peers that could not keep up with the broadcast rate.
// An entry is only removed if it still maps to the outbox that failed.
func (r *Registry) evict(entries []lo.Entry[Identity, *Outbox]) {
	for _, e := range entries {
		if r.remove(e.Key, e.Value) {
			r.log.Warn("Evicted peer with full outbound queue", "peer", e.Key)
		}
	}
}

// remove deletes id when it maps to expected (or to anything when expected is
// nil) and closes the removed outbox. It reports whether an entry was removed.
func (r *Registry) remove(id Identity, expected *Outbox) bool {
	r.mu.Lock()
	outbox, ok := r.peers[id]
	if ok && expected != nil && outbox != expected {
		ok = false
	}
	if ok {
		delete(r.peers, id)
	}
	count := len(r.peers)
	r.mu.Unlock()

	if !ok {
		return false
	}
	// Close the outbox after releasing the lock
	outbox.Close()
	r.log.Debug("Peer deregistered", "peer", id, "peers", count)
	return true
}
