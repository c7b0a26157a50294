package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/busgate/server/internal/db"

	"github.com/busgate/server/internal/busgate/fieldcrypt"
	"github.com/busgate/server/internal/busgate/store"
)

type StudentStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewStudentStore(db *sql.DB, writer *dbpkg.Worker) *StudentStore {
	return &StudentStore{db: db, writer: writer}
}

func (s *StudentStore) GetStudent(ctx context.Context, studentRef string) (store.StudentRecord, error) {
	var rec store.StudentRecord
	var createdMs int64

	err := s.db.QueryRowContext(ctx, `
SELECT student_ref, bus_id,
       name_key_id, name_nonce, name_ct,
       guardian_email_key_id, guardian_email_nonce, guardian_email_ct,
       guardian_phone_key_id, guardian_phone_nonce, guardian_phone_ct,
       created_at_ms
FROM students
WHERE student_ref = ?;
`, studentRef).Scan(
		&rec.StudentRef, &rec.BusID,
		&rec.Name.KeyID, &rec.Name.Nonce, &rec.Name.Ciphertext,
		&rec.GuardianEmail.KeyID, &rec.GuardianEmail.Nonce, &rec.GuardianEmail.Ciphertext,
		&rec.GuardianPhone.KeyID, &rec.GuardianPhone.Nonce, &rec.GuardianPhone.Ciphertext,
		&createdMs,
	)

	if err == sql.ErrNoRows {
		return store.StudentRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.StudentRecord{}, fmt.Errorf("GetStudent query: %w", err)
	}

	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	return rec, nil
}

func (s *StudentStore) PutStudent(ctx context.Context, rec store.StudentRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	ms := rec.CreatedAt.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO students(
  student_ref, bus_id,
  name_key_id, name_nonce, name_ct,
  guardian_email_key_id, guardian_email_nonce, guardian_email_ct,
  guardian_phone_key_id, guardian_phone_nonce, guardian_phone_ct,
  created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(student_ref) DO UPDATE SET
  bus_id                = excluded.bus_id,
  name_key_id           = excluded.name_key_id,
  name_nonce            = excluded.name_nonce,
  name_ct               = excluded.name_ct,
  guardian_email_key_id = excluded.guardian_email_key_id,
  guardian_email_nonce  = excluded.guardian_email_nonce,
  guardian_email_ct     = excluded.guardian_email_ct,
  guardian_phone_key_id = excluded.guardian_phone_key_id,
  guardian_phone_nonce  = excluded.guardian_phone_nonce,
  guardian_phone_ct     = excluded.guardian_phone_ct,
  updated_at_ms         = excluded.updated_at_ms;
`,
			rec.StudentRef, rec.BusID,
			rec.Name.KeyID, rec.Name.Nonce, rec.Name.Ciphertext,
			rec.GuardianEmail.KeyID, rec.GuardianEmail.Nonce, rec.GuardianEmail.Ciphertext,
			rec.GuardianPhone.KeyID, rec.GuardianPhone.Nonce, rec.GuardianPhone.Ciphertext,
			ms, ms,
		); err != nil {
			return fmt.Errorf("PutStudent insert: %w", err)
		}
		return nil
	})
}

// ReEncryptStudents walks every student row and rewrites fields still
// encrypted under a non-active key.  Each row migrates in its own
// worker transaction, so an interrupted run leaves whole rows either
// migrated or untouched and a rerun picks up where it stopped.
func (s *StudentStore) ReEncryptStudents(ctx context.Context, cipher *fieldcrypt.Cipher) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT student_ref FROM students ORDER BY student_ref;`)
	if err != nil {
		return 0, fmt.Errorf("ReEncryptStudents list: %w", err)
	}

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			rows.Close()
			return 0, fmt.Errorf("ReEncryptStudents scan: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("ReEncryptStudents rows: %w", err)
	}
	rows.Close()

	rewritten := 0
	for _, ref := range refs {
		rec, err := s.GetStudent(ctx, ref)
		if err != nil {
			return rewritten, err
		}

		changed := false
		for _, f := range []*fieldcrypt.EncryptedField{&rec.Name, &rec.GuardianEmail, &rec.GuardianPhone} {
			out, c, err := cipher.ReEncrypt(*f)
			if err != nil {
				return rewritten, fmt.Errorf("ReEncryptStudents %s: %w", ref, err)
			}
			if c {
				*f = out
				changed = true
			}
		}
		if !changed {
			continue
		}

		if err := s.PutStudent(ctx, rec); err != nil {
			return rewritten, err
		}
		rewritten++
	}
	return rewritten, nil
}
