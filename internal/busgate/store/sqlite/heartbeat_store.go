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

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

func (s *HeartbeatStore) UpsertHeartbeat(ctx context.Context, deviceID string, rec store.HeartbeatRecord) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	recvMs := rec.ReceivedAt.UTC().UnixMilli()

	fw := strings.TrimSpace(rec.Request.FirmwareVersion)
	ip := strings.TrimSpace(rec.Request.IP)

	var uptimeMs any
	if rec.Request.UptimeSeconds != 0 {
		uptimeMs = int64(rec.Request.UptimeSeconds) * 1000
	}
	var battery any
	if rec.Request.BatteryPct != nil {
		battery = *rec.Request.BatteryPct
	}
	var rssi any
	if rec.Request.RSSIDbm != nil {
		rssi = *rec.Request.RSSIDbm
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO device_heartbeats(
  device_id, received_at_ms, fw_version, uptime_ms, battery_pct, wifi_rssi, ip
) VALUES (?, ?, ?, ?, ?, ?, ?);
`, deviceID, recvMs, fw, uptimeMs, battery, rssi, ip); err != nil {
			return fmt.Errorf("UpsertHeartbeat insert: %w", err)
		}
		return nil
	})
}

// PruneOlderThan deletes heartbeat rows with received_at_ms before the
// given cutoff.  Uses the idx_heartbeats_time index for a range scan.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM device_heartbeats
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
