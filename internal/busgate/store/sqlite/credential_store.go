package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/busgate/server/internal/db"

	"github.com/busgate/server/internal/busgate/store"
)

type CredentialStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCredentialStore(db *sql.DB, writer *dbpkg.Worker) *CredentialStore {
	return &CredentialStore{db: db, writer: writer}
}

func (s *CredentialStore) GetCredential(ctx context.Context, deviceID string) (store.CredentialRecord, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return store.CredentialRecord{}, store.ErrNotFound
	}

	var rec store.CredentialRecord
	var active int
	var createdMs int64
	var rotatedMs sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
SELECT device_id, secret_hash, active, bus_id, created_at_ms, rotated_at_ms
FROM device_credentials
WHERE device_id = ?;
`, deviceID).Scan(&rec.DeviceID, &rec.SecretHash, &active, &rec.BusID, &createdMs, &rotatedMs)

	if err == sql.ErrNoRows {
		return store.CredentialRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.CredentialRecord{}, fmt.Errorf("GetCredential query: %w", err)
	}

	rec.Active = active == 1
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	if rotatedMs.Valid {
		rec.RotatedAt = time.UnixMilli(rotatedMs.Int64).UTC()
	}
	return rec, nil
}

func (s *CredentialStore) PutCredential(ctx context.Context, rec store.CredentialRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	createdMs := rec.CreatedAt.UTC().UnixMilli()

	var active int
	if rec.Active {
		active = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO device_credentials(
  device_id, secret_hash, active, bus_id, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  secret_hash   = excluded.secret_hash,
  active        = excluded.active,
  bus_id        = excluded.bus_id,
  updated_at_ms = excluded.updated_at_ms;
`, rec.DeviceID, rec.SecretHash, active, rec.BusID, createdMs, createdMs); err != nil {
			return fmt.Errorf("PutCredential insert: %w", err)
		}
		return nil
	})
}

// RotateSecret replaces the stored hash in a single statement, so the
// old secret stops verifying the instant the new one starts.
func (s *CredentialStore) RotateSecret(ctx context.Context, deviceID, newHash string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	ms := at.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE device_credentials
SET secret_hash   = ?,
    rotated_at_ms = ?,
    updated_at_ms = ?
WHERE device_id = ?;
`, newHash, ms, ms, deviceID)
		if err != nil {
			return fmt.Errorf("RotateSecret update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *CredentialStore) SetActive(ctx context.Context, deviceID string, active bool) error {
	ms := time.Now().UTC().UnixMilli()

	var a int
	if active {
		a = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE device_credentials
SET active        = ?,
    updated_at_ms = ?
WHERE device_id = ?;
`, a, ms, deviceID)
		if err != nil {
			return fmt.Errorf("SetActive update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}
