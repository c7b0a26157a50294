package memory

import (
	"context"
	"sync"
	"time"

	"github.com/busgate/server/internal/busgate/fieldcrypt"
	"github.com/busgate/server/internal/busgate/store"
)

type StudentStore struct {
	mu       sync.RWMutex
	students map[string]store.StudentRecord
}

func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[string]store.StudentRecord)}
}

func (s *StudentStore) GetStudent(_ context.Context, studentRef string) (store.StudentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.students[studentRef]
	if !ok {
		return store.StudentRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *StudentStore) PutStudent(_ context.Context, rec store.StudentRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[rec.StudentRef] = rec
	return nil
}

func (s *StudentStore) ReEncryptStudents(_ context.Context, cipher *fieldcrypt.Cipher) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rewritten := 0
	for ref, rec := range s.students {
		changed := false
		for _, f := range []*fieldcrypt.EncryptedField{&rec.Name, &rec.GuardianEmail, &rec.GuardianPhone} {
			out, c, err := cipher.ReEncrypt(*f)
			if err != nil {
				return rewritten, err
			}
			if c {
				*f = out
				changed = true
			}
		}
		if changed {
			s.students[ref] = rec
			rewritten++
		}
	}
	return rewritten, nil
}
