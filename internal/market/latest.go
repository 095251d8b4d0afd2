package market

import (
	"sync"
	"time"
)

// LatestStore keeps the most recent snapshot and fans updates out to
// subscribers (e.g., websocket connections).
type LatestStore struct {
	mu     sync.RWMutex
	latest PriceUpdate
	ok     bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan PriceUpdate
}

func NewLatestStore() *LatestStore {
	return &LatestStore{
		subs: make(map[int]chan PriceUpdate),
	}
}

// Set replaces the latest snapshot and notifies subscribers.
func (s *LatestStore) Set(snapshot Snapshot, fetchedAt time.Time) {
	update := PriceUpdate{Snapshot: snapshot, FetchedAt: fetchedAt}

	s.mu.Lock()
	s.latest = update
	s.ok = true
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		// Slow readers only ever need the newest value.
		select {
		case <-ch:
		default:
		}
		ch <- update
	}
}

// Get returns the latest snapshot, or false if none was stored yet.
func (s *LatestStore) Get() (PriceUpdate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}

// Subscribe returns a channel that receives each new snapshot and a
// function that unregisters it.
func (s *LatestStore) Subscribe() (<-chan PriceUpdate, func()) {
	ch := make(chan PriceUpdate, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}
