package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/busgate/server/internal/busgate/store"
	"github.com/busgate/server/internal/busgate/types"
)

// BoardingEventStore is an in-memory append-only event log with the
// same chain-hash behavior as the sqlite store.  Tests and dev only.
type BoardingEventStore struct {
	mu     sync.Mutex
	events []store.BoardingEventRecord
}

func NewBoardingEventStore() *BoardingEventStore {
	return &BoardingEventStore{}
}

func (s *BoardingEventStore) AppendEvent(_ context.Context, rec store.BoardingEventRecord) (store.BoardingEventRecord, error) {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prev []byte
	if n := len(s.events); n > 0 {
		prev = s.events[n-1].ChainHash
	}
	rec.ChainHash = store.ChainHash(prev, rec)
	s.events = append(s.events, rec)
	return rec, nil
}

func (s *BoardingEventStore) VerifyChain(_ context.Context) (types.ChainVerifyResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev []byte
	for i, ev := range s.events {
		want := store.ChainHash(prev, ev)
		if !bytes.Equal(want, ev.ChainHash) {
			return types.ChainVerifyResponse{OK: false, Checked: i + 1, BrokenAt: ev.ID}, nil
		}
		prev = ev.ChainHash
	}
	return types.ChainVerifyResponse{OK: true, Checked: len(s.events)}, nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *BoardingEventStore) Events() []store.BoardingEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.BoardingEventRecord, len(s.events))
	copy(out, s.events)
	return out
}

// TamperEvent overwrites a stored event's reason without rehashing.
// Test-only helper for chain verification tests.
func (s *BoardingEventStore) TamperEvent(i int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[i].Reason = reason
}
