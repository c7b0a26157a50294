package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/busgate/server/internal/busgate/secrets"
)

type SeedDevOptions struct {
	// DeviceAPIKey is the plaintext API key hashed into the seeded
	// kiosk credential.  Dev only — prod provisioning goes through an
	// admin flow.
	DeviceAPIKey string
}

// SeedDev creates a starter bus, route, and an active kiosk credential
// so a dev environment can authenticate immediately.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO buses(bus_id, display_name, created_at_ms, updated_at_ms)
VALUES ('bus-07', 'Bus 07', ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed buses: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO routes(route_id, bus_id, name, active, created_at_ms, updated_at_ms)
VALUES ('route-12', 'bus-07', 'Morning Northside', 1, ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed routes: %w", err)
	}

	apiKey := opt.DeviceAPIKey
	if apiKey == "" {
		apiKey = "dev-only-key"
	}
	hash, err := secrets.Hash(apiKey)
	if err != nil {
		return fmt.Errorf("seed credential hash: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT INTO device_credentials(
  device_id, secret_hash, active, bus_id, created_at_ms, updated_at_ms
) VALUES ('kiosk-07', ?, 1, 'bus-07', ?, ?)
ON CONFLICT(device_id) DO UPDATE SET
  active = 1,
  updated_at_ms = excluded.updated_at_ms;
`, hash, now, now); err != nil {
		return fmt.Errorf("seed credential kiosk-07: %w", err)
	}

	return nil
}
