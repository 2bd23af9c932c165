// Package memory keeps a fixed-size window of recent interactions per
// conversation thread. State lives for the process lifetime only.
package memory

import (
	"slices"
	"sync"

	"worldbuilder-agent/internal/domain"
)

// Capacity is the maximum number of entries kept per thread.
const Capacity = 5

// Store is a per-thread FIFO window. The zero value is not usable; use New.
type Store struct {
	mu      sync.Mutex
	threads map[int64][]domain.MemoryEntry
}

func New() *Store {
	return &Store{threads: make(map[int64][]domain.MemoryEntry)}
}

// Append adds e to the end of the thread's window, evicting the oldest
// entries beyond Capacity, and returns the resulting window length.
func (s *Store) Append(threadID int64, e domain.MemoryEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := append(s.threads[threadID], e)
	if over := len(w) - Capacity; over > 0 {
		w = slices.Clone(w[over:])
	}
	s.threads[threadID] = w
	return len(w)
}

// Window returns a copy of the thread's entries, oldest first.
func (s *Store) Window(threadID int64) []domain.MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.threads[threadID])
}

// Len returns the number of entries held for the thread.
func (s *Store) Len(threadID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads[threadID])
}

// Threads returns the ids of threads with at least one entry, ascending.
func (s *Store) Threads() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
