package memory

import (
	"context"
	"sync"
	"time"

	"github.com/busgate/server/internal/busgate/store"
)

type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]store.CredentialRecord
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]store.CredentialRecord)}
}

func (s *CredentialStore) GetCredential(_ context.Context, deviceID string) (store.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.creds[deviceID]
	if !ok {
		return store.CredentialRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *CredentialStore) PutCredential(_ context.Context, rec store.CredentialRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[rec.DeviceID] = rec
	return nil
}

func (s *CredentialStore) RotateSecret(_ context.Context, deviceID, newHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.creds[deviceID]
	if !ok {
		return store.ErrNotFound
	}
	rec.SecretHash = newHash
	rec.RotatedAt = at
	s.creds[deviceID] = rec
	return nil
}

func (s *CredentialStore) SetActive(_ context.Context, deviceID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.creds[deviceID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Active = active
	s.creds[deviceID] = rec
	return nil
}
