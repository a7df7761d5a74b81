// Package slots keeps the six clipboard slots in memory, optionally writing
// through to a durable backing.
package slots

import (
	"context"
	"sync"
	"time"

	"github.com/slotpaste/agent/internal/keys"
	"github.com/slotpaste/agent/internal/logging"
)

var log = logging.L("slots")

const backingTimeout = 2 * time.Second

// Backing is the durable read/write contract behind a Store.
type Backing interface {
	Name() string
	LoadAll(ctx context.Context) (map[keys.SlotId]string, error)
	Upsert(ctx context.Context, slot keys.SlotId, content string, updatedAt time.Time) error
	Close() error
}

// Timestamped is implemented by backings that record when each slot was
// last written.
type Timestamped interface {
	UpdatedAt(ctx context.Context, slot keys.SlotId) (time.Time, error)
}

// Option configures a Store.
type Option func(*Store)

// WithErrorHook registers a callback for load and write-through failures.
// op is "load" or "upsert".
func WithErrorHook(fn func(op string, err error)) Option {
	return func(s *Store) {
		s.onError = fn
	}
}

// Store is the six-entry slot cache. The mode state machine is its only
// writer; reads from other goroutines (status endpoint) are safe.
type Store struct {
	mu      sync.RWMutex
	slots   map[keys.SlotId]string
	backing Backing
	onError func(op string, err error)
}

// NewMemory returns a store with no durable backing. Slots start empty and
// are lost on exit.
func NewMemory(opts ...Option) *Store {
	s := &Store{slots: make(map[keys.SlotId]string, len(keys.AllSlots))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads every persisted slot from backing. A nil backing is the same as
// NewMemory. If loading fails the store detaches from the backing and runs
// in memory only for the rest of the process.
func Open(ctx context.Context, backing Backing, opts ...Option) *Store {
	s := NewMemory(opts...)
	if backing == nil {
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, backingTimeout)
	defer cancel()

	loaded, err := backing.LoadAll(ctx)
	if err != nil {
		log.Warn("persistence load failed, using in-memory only", "backing", backing.Name(), logging.KeyError, err)
		s.reportError("load", err)
		if cerr := backing.Close(); cerr != nil {
			log.Debug("closing failed backing", logging.KeyError, cerr)
		}
		return s
	}

	for slot, content := range loaded {
		s.slots[slot] = content
	}
	s.backing = backing
	log.Info("loaded slots", "backing", backing.Name(), "count", len(loaded))
	return s
}

// Save overwrites the slot. With a backing configured the write goes through
// synchronously; a failed write is logged and the in-memory value still wins.
func (s *Store) Save(slot keys.SlotId, content string) {
	s.mu.Lock()
	s.slots[slot] = content
	backing := s.backing
	s.mu.Unlock()

	if backing == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), backingTimeout)
	defer cancel()
	if err := backing.Upsert(ctx, slot, content, time.Now()); err != nil {
		log.Warn("persistence upsert failed", logging.KeySlot, slot.Label(), "backing", backing.Name(), logging.KeyError, err)
		s.reportError("upsert", err)
	}
}

// Get returns the slot text and whether the slot has ever been saved.
func (s *Store) Get(slot keys.SlotId) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.slots[slot]
	return v, ok
}

// IsEmpty is true if the slot was never saved or was saved with "".
func (s *Store) IsEmpty(slot keys.SlotId) bool {
	v, _ := s.Get(slot)
	return v == ""
}

// Snapshot copies the current slot contents.
func (s *Store) Snapshot() map[keys.SlotId]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[keys.SlotId]string, len(s.slots))
	for k, v := range s.slots {
		out[k] = v
	}
	return out
}

// Persistent reports whether writes are going to a durable backing.
func (s *Store) Persistent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backing != nil
}

// Close releases the backing, if any.
func (s *Store) Close() error {
	s.mu.Lock()
	backing := s.backing
	s.backing = nil
	s.mu.Unlock()

	if backing == nil {
		return nil
	}
	return backing.Close()
}

func (s *Store) reportError(op string, err error) {
	if s.onError != nil {
		s.onError(op, err)
	}
}
