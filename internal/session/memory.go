package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	version   int64
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Expired entries are dropped lazily
// on Load and by a janitor goroutine; call Close to stop it.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewMemoryStore(ttl, sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.janitor(sweepEvery)
	return s
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	values, err := decodeValues(entry.data)
	if err != nil {
		return nil, err
	}
	return restore(id, entry.version, values, entry.expiresAt), nil
}

// Save writes the whole session if its version still matches the stored one.
func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	data, err := sess.Encode()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.entries[sess.ID()]
	switch {
	case sess.IsNew() && exists && !s.now().After(current.expiresAt):
		return ErrConflict
	case !sess.IsNew() && (!exists || current.version != sess.Version()):
		return ErrConflict
	}

	next := sess.Version() + 1
	s.entries[sess.ID()] = memoryEntry{data: data, version: next, expiresAt: expiresAt}
	sess.committed(next, expiresAt)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *MemoryStore) janitor(every time.Duration) {
	defer close(s.done)
	if every <= 0 {
		<-s.stop
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() int {
	now := s.now()
	removed := 0
	s.mu.Lock()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}
