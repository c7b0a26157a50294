package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/busgate/server/internal/busgate/store"
	"github.com/busgate/server/internal/busgate/store/sqlite"
)

// PutCredential / GetCredential — round trip
func TestCredentialStore_RoundTrip(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedBus(t, conn, "bus-07")

	s := sqlite.NewCredentialStore(conn, w)
	ctx := context.Background()

	err := s.PutCredential(ctx, store.CredentialRecord{
		DeviceID:   "kiosk-07",
		SecretHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		Active:     true,
		BusID:      "bus-07",
	})
	if err != nil {
		t.Fatalf("PutCredential: %v", err)
	}

	got, err := s.GetCredential(ctx, "kiosk-07")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if got.DeviceID != "kiosk-07" || got.BusID != "bus-07" || !got.Active {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.SecretHash == "" {
		t.Error("expected the stored hash back")
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be populated")
	}
	if !got.RotatedAt.IsZero() {
		t.Error("expected rotated_at unset on a fresh credential")
	}
}

// GetCredential — unknown id
func TestCredentialStore_GetUnknown(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)

	s := sqlite.NewCredentialStore(conn, w)

	if _, err := s.GetCredential(context.Background(), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// RotateSecret — replaces the hash and stamps rotated_at
func TestCredentialStore_RotateSecret(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedBus(t, conn, "bus-07")

	s := sqlite.NewCredentialStore(conn, w)
	ctx := context.Background()

	if err := s.PutCredential(ctx, store.CredentialRecord{
		DeviceID:   "kiosk-07",
		SecretHash: "old-hash",
		Active:     true,
		BusID:      "bus-07",
	}); err != nil {
		t.Fatalf("PutCredential: %v", err)
	}

	at := time.Now().UTC()
	if err := s.RotateSecret(ctx, "kiosk-07", "new-hash", at); err != nil {
		t.Fatalf("RotateSecret: %v", err)
	}

	got, err := s.GetCredential(ctx, "kiosk-07")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if got.SecretHash != "new-hash" {
		t.Errorf("expected new hash, got %q", got.SecretHash)
	}
	if got.RotatedAt.IsZero() {
		t.Error("expected rotated_at to be stamped")
	}

	// Rotating a nonexistent device reports not found.
	if err := s.RotateSecret(ctx, "ghost", "x", at); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// SetActive — deactivation round trip
func TestCredentialStore_SetActive(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedBus(t, conn, "bus-07")

	s := sqlite.NewCredentialStore(conn, w)
	ctx := context.Background()

	if err := s.PutCredential(ctx, store.CredentialRecord{
		DeviceID:   "kiosk-07",
		SecretHash: "h",
		Active:     true,
		BusID:      "bus-07",
	}); err != nil {
		t.Fatalf("PutCredential: %v", err)
	}

	if err := s.SetActive(ctx, "kiosk-07", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	got, err := s.GetCredential(ctx, "kiosk-07")
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if got.Active {
		t.Error("expected credential to be inactive")
	}

	if err := s.SetActive(ctx, "ghost", false); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// GetActiveRoute — newest active route wins, inactive ignored
func TestRouteStore_GetActiveRoute(t *testing.T) {
	conn := openTestDB(t)
	seedBus(t, conn, "bus-07")
	seedRoute(t, conn, "route-old", "bus-07", false)
	seedRoute(t, conn, "route-12", "bus-07", true)

	s := sqlite.NewRouteStore(conn)

	got, err := s.GetActiveRoute(context.Background(), "bus-07")
	if err != nil {
		t.Fatalf("GetActiveRoute: %v", err)
	}
	if got.RouteID != "route-12" || !got.Active {
		t.Errorf("unexpected route: %+v", got)
	}

	if _, err := s.GetActiveRoute(context.Background(), "bus-unrouted"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unrouted bus, got %v", err)
	}
}
