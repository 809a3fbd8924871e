package cache

import (
	"context"
	"sync"
	"time"
)

type claim struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore guards submissions within a single process.
// Expired claims are swept by a background goroutine until Close.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	claims    map[string]claim
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a store and starts its sweeper
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		claims:   make(map[string]claim),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop(time.Minute)
	return s
}

// Claim records key for ttl. It returns false if an unexpired claim exists.
func (s *InMemoryIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, ok := s.claims[key]; ok && now.Before(c.expiresAt) {
		return false, nil
	}
	s.claims[key] = claim{expiresAt: now.Add(ttl)}
	return true, nil
}

// Release drops the claim so the key can be retried
func (s *InMemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

// Size returns the number of claims held, expired or not
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, c := range s.claims {
		if !now.Before(c.expiresAt) {
			delete(s.claims, k)
		}
	}
}
