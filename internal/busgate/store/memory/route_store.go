package memory

import (
	"context"
	"sync"

	"github.com/busgate/server/internal/busgate/store"
)

type RouteStore struct {
	mu     sync.RWMutex
	routes map[string]store.RouteRecord // keyed by bus id
}

func NewRouteStore() *RouteStore {
	return &RouteStore{routes: make(map[string]store.RouteRecord)}
}

func (s *RouteStore) GetActiveRoute(_ context.Context, busID string) (store.RouteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.routes[busID]
	if !ok || !rec.Active {
		return store.RouteRecord{}, store.ErrNotFound
	}
	return rec, nil
}

// AssignRoute sets the route for a bus.  Test/dev helper.
func (s *RouteStore) AssignRoute(rec store.RouteRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[rec.BusID] = rec
}
