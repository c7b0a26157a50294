package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/busgate/server/internal/db"

	"github.com/busgate/server/internal/busgate/fieldcrypt"
	"github.com/busgate/server/internal/busgate/store"
	"github.com/busgate/server/internal/busgate/types"
)

type BoardingEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewBoardingEventStore(db *sql.DB, writer *dbpkg.Worker) *BoardingEventStore {
	return &BoardingEventStore{db: db, writer: writer}
}

// AppendEvent inserts the event with its chain hash in one transaction.
// Reading the previous hash and inserting the new row happen under the
// single-writer worker, so two concurrent appends cannot both chain
// off the same predecessor.
func (s *BoardingEventStore) AppendEvent(ctx context.Context, rec store.BoardingEventRecord) (store.BoardingEventRecord, error) {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	decidedMs := rec.DecidedAt.UTC().UnixMilli()

	var faceScore any
	if rec.FaceScore != nil {
		faceScore = *rec.FaceScore
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var prev []byte
		err := tx.QueryRowContext(ctx, `
SELECT chain_hash FROM boarding_events ORDER BY rowid DESC LIMIT 1;
`).Scan(&prev)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("AppendEvent read chain head: %w", err)
		}

		rec.ChainHash = store.ChainHash(prev, rec)

		if _, err := tx.ExecContext(ctx, `
INSERT INTO boarding_events(
  id, device_id, bus_id, route_id,
  student_ref_key_id, student_ref_nonce, student_ref_ct,
  direction, face_score, decision, reason, decided_at_ms, chain_hash
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.DeviceID, rec.BusID, rec.RouteID,
			rec.StudentRef.KeyID, rec.StudentRef.Nonce, rec.StudentRef.Ciphertext,
			rec.Direction, faceScore, rec.Decision, rec.Reason, decidedMs, rec.ChainHash,
		); err != nil {
			return fmt.Errorf("AppendEvent insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.BoardingEventRecord{}, err
	}
	return rec, nil
}

func (s *BoardingEventStore) VerifyChain(ctx context.Context) (types.ChainVerifyResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, device_id, bus_id, route_id,
       student_ref_key_id, student_ref_nonce, student_ref_ct,
       direction, face_score, decision, reason, decided_at_ms, chain_hash
FROM boarding_events
ORDER BY rowid ASC;
`)
	if err != nil {
		return types.ChainVerifyResponse{}, fmt.Errorf("VerifyChain query: %w", err)
	}
	defer rows.Close()

	var prev []byte
	checked := 0
	for rows.Next() {
		var rec store.BoardingEventRecord
		var f fieldcrypt.EncryptedField
		var faceScore sql.NullFloat64
		var decidedMs int64

		if err := rows.Scan(
			&rec.ID, &rec.DeviceID, &rec.BusID, &rec.RouteID,
			&f.KeyID, &f.Nonce, &f.Ciphertext,
			&rec.Direction, &faceScore, &rec.Decision, &rec.Reason, &decidedMs, &rec.ChainHash,
		); err != nil {
			return types.ChainVerifyResponse{}, fmt.Errorf("VerifyChain scan: %w", err)
		}

		rec.StudentRef = f
		if faceScore.Valid {
			v := faceScore.Float64
			rec.FaceScore = &v
		}
		rec.DecidedAt = time.UnixMilli(decidedMs).UTC()

		checked++
		if !bytes.Equal(store.ChainHash(prev, rec), rec.ChainHash) {
			return types.ChainVerifyResponse{OK: false, Checked: checked, BrokenAt: rec.ID}, nil
		}
		prev = rec.ChainHash
	}
	if err := rows.Err(); err != nil {
		return types.ChainVerifyResponse{}, fmt.Errorf("VerifyChain rows: %w", err)
	}

	return types.ChainVerifyResponse{OK: true, Checked: checked}, nil
}
