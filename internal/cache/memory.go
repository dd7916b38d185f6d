package cache

import "sync"

// MemoryStore is the in-process Store implementation.
//
// Fetches coordinate with event-driven writes through per-key generations:
// BeginFetch captures the current generation, CancelInFlight (and any write)
// bumps it, and CompleteFetch drops the result when the generations no longer
// match. Dropping a completed fetch is not an error; the caller simply lost
// the race to a fresher write.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]any
	stale   map[Key]bool
	gens    map[Key]uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key]any),
		stale:   make(map[Key]bool),
		gens:    make(map[Key]uint64),
	}
}

// Get returns the cached value for key, if any.
func (s *MemoryStore) Get(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

// Set replaces the value for key. Any in-flight fetch for the key is
// superseded and will be dropped on completion.
func (s *MemoryStore) Set(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	delete(s.stale, key)
	s.gens[key]++
}

// CancelInFlight invalidates every fetch currently in flight for key.
func (s *MemoryStore) CancelInFlight(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
}

// Invalidate marks key stale without dropping its current value.
func (s *MemoryStore) Invalidate(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		// Never create a dangling key for data nobody holds.
		return
	}
	s.stale[key] = true
	s.gens[key]++
}

// IsStale reports whether key has been invalidated since its last Set.
func (s *MemoryStore) IsStale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale[key]
}

// BeginFetch records the start of a fetch for key and returns the generation
// the eventual CompleteFetch must present.
func (s *MemoryStore) BeginFetch(key Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key]
}

// CompleteFetch writes a fetched value if the fetch is still current. It
// returns false when the fetch was cancelled or superseded, in which case the
// value is discarded.
func (s *MemoryStore) CompleteFetch(key Key, gen uint64, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key] != gen {
		return false
	}
	s.entries[key] = value
	delete(s.stale, key)
	s.gens[key]++
	return true
}
