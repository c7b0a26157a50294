package memory

import (
	"context"
	"sync"
	"time"

	"github.com/busgate/server/internal/busgate/store"
)

type HeartbeatStore struct {
	mu   sync.RWMutex
	data map[string]store.HeartbeatRecord
}

func NewHeartbeatStore() *HeartbeatStore {
	return &HeartbeatStore{data: make(map[string]store.HeartbeatRecord)}
}

func (s *HeartbeatStore) UpsertHeartbeat(_ context.Context, deviceID string, rec store.HeartbeatRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[deviceID] = rec
	return nil
}

func (s *HeartbeatStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rec := range s.data {
		if rec.ReceivedAt.Before(cutoff) {
			delete(s.data, id)
			deleted++
		}
	}
	return deleted, nil
}
