package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/busgate/server/internal/busgate/store"
)

type RouteStore struct {
	db *sql.DB
}

func NewRouteStore(db *sql.DB) *RouteStore {
	return &RouteStore{db: db}
}

func (s *RouteStore) GetActiveRoute(ctx context.Context, busID string) (store.RouteRecord, error) {
	var rec store.RouteRecord
	var active int

	err := s.db.QueryRowContext(ctx, `
SELECT route_id, bus_id, name, active
FROM routes
WHERE bus_id = ? AND active = 1
ORDER BY updated_at_ms DESC
LIMIT 1;
`, busID).Scan(&rec.RouteID, &rec.BusID, &rec.Name, &active)

	if err == sql.ErrNoRows {
		return store.RouteRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.RouteRecord{}, fmt.Errorf("GetActiveRoute query: %w", err)
	}

	rec.Active = active == 1
	return rec, nil
}
