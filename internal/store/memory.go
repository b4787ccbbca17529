package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jcarrillo7/weather-station-api/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of
// weather.Store. It backs tests and local development without a Mongo
// instance; production runs on MongoStore.
type MemoryStore struct {
	mu sync.RWMutex

	// insertion order, which is not necessarily timestamp order once the
	// poller and a backfilling request interleave
	observations []weather.Observation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends one observation.
func (s *MemoryStore) Insert(_ context.Context, obs weather.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observations = append(s.observations, obs)
	return nil
}

// Latest returns the observation with the newest timestamp.
func (s *MemoryStore) Latest(_ context.Context) (weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.observations) == 0 {
		return weather.Observation{}, weather.ErrNotFound
	}

	latest := s.observations[0]
	for _, obs := range s.observations[1:] {
		if obs.Timestamp.After(latest.Timestamp) {
			latest = obs
		}
	}
	return latest, nil
}

// Range returns observations with from <= timestamp < to, ascending.
func (s *MemoryStore) Range(_ context.Context, from, to time.Time) ([]weather.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.Observation, 0)
	for _, obs := range s.observations {
		if !obs.Timestamp.Before(from) && obs.Timestamp.Before(to) {
			result = append(result, obs)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// Exists reports whether an observation with the given id is stored.
func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, obs := range s.observations {
		if obs.ID == id {
			return true, nil
		}
	}
	return false, nil
}
