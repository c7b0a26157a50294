package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/busgate/server/internal/busgate/secrets"
	"github.com/busgate/server/internal/busgate/service"
	"github.com/busgate/server/internal/busgate/store"
	"github.com/busgate/server/internal/busgate/store/memory"
	"github.com/busgate/server/internal/busgate/token"
	"github.com/busgate/server/internal/busgate/types"
)

func newTestIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	iss, err := token.NewIssuer(key, time.Hour, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

// provisionDevice hashes the secret and stores an active credential.
func provisionDevice(t *testing.T, creds *memory.CredentialStore, deviceID, secret, busID string) {
	t.Helper()
	hash, err := secrets.Hash(secret)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	err = creds.PutCredential(context.Background(), store.CredentialRecord{
		DeviceID:   deviceID,
		SecretHash: hash,
		Active:     true,
		BusID:      busID,
	})
	if err != nil {
		t.Fatalf("PutCredential: %v", err)
	}
}

func TestIssueDeviceToken_ValidCredentials(t *testing.T) {
	creds := memory.NewCredentialStore()
	provisionDevice(t, creds, "kiosk-07", "s3cr3t", "bus-07")

	iss := newTestIssuer(t)
	svc := service.NewAuthService(creds, iss)

	resp, err := svc.IssueDeviceToken(context.Background(), types.DeviceAuthRequest{
		DeviceID: "kiosk-07",
		APIKey:   "s3cr3t",
	})
	if err != nil {
		t.Fatalf("IssueDeviceToken: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}
	if resp.ExpiresAt == "" {
		t.Error("expected expires_at")
	}

	claims, err := iss.Verify(resp.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "kiosk-07" {
		t.Errorf("expected subject kiosk-07, got %q", claims.Subject)
	}
	if claims.SubjectType != token.SubjectDevice {
		t.Errorf("expected device subject type, got %q", claims.SubjectType)
	}
}

func TestIssueDeviceToken_UniformAuthenticationError(t *testing.T) {
	creds := memory.NewCredentialStore()
	provisionDevice(t, creds, "kiosk-07", "s3cr3t", "bus-07")

	// Deactivated device for the inactive case.
	provisionDevice(t, creds, "kiosk-08", "other", "bus-08")
	if err := creds.SetActive(context.Background(), "kiosk-08", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	svc := service.NewAuthService(creds, newTestIssuer(t))

	cases := []struct {
		name string
		req  types.DeviceAuthRequest
	}{
		{"unknown device", types.DeviceAuthRequest{DeviceID: "no-such-kiosk", APIKey: "s3cr3t"}},
		{"wrong key", types.DeviceAuthRequest{DeviceID: "kiosk-07", APIKey: "wrong"}},
		{"inactive device", types.DeviceAuthRequest{DeviceID: "kiosk-08", APIKey: "other"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.IssueDeviceToken(context.Background(), tc.req)
			if !errors.Is(err, service.ErrAuthentication) {
				t.Errorf("expected ErrAuthentication, got %v", err)
			}
		})
	}
}

func TestIssueDeviceToken_MissingFields(t *testing.T) {
	svc := service.NewAuthService(memory.NewCredentialStore(), newTestIssuer(t))

	_, err := svc.IssueDeviceToken(context.Background(), types.DeviceAuthRequest{APIKey: "k"})
	if !errors.Is(err, service.ErrInvalidDeviceID) {
		t.Errorf("expected ErrInvalidDeviceID, got %v", err)
	}

	_, err = svc.IssueDeviceToken(context.Background(), types.DeviceAuthRequest{DeviceID: "kiosk-07"})
	if !errors.Is(err, service.ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestIssueDeviceToken_AfterSecretRotation(t *testing.T) {
	creds := memory.NewCredentialStore()
	provisionDevice(t, creds, "kiosk-07", "old-key", "bus-07")

	svc := service.NewAuthService(creds, newTestIssuer(t))
	ctx := context.Background()

	newHash, err := secrets.Hash("new-key")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := creds.RotateSecret(ctx, "kiosk-07", newHash, time.Now().UTC()); err != nil {
		t.Fatalf("RotateSecret: %v", err)
	}

	// The old secret is invalidated the moment the hash is replaced.
	if _, err := svc.IssueDeviceToken(ctx, types.DeviceAuthRequest{DeviceID: "kiosk-07", APIKey: "old-key"}); !errors.Is(err, service.ErrAuthentication) {
		t.Errorf("expected old key to stop authenticating, got %v", err)
	}
	if _, err := svc.IssueDeviceToken(ctx, types.DeviceAuthRequest{DeviceID: "kiosk-07", APIKey: "new-key"}); err != nil {
		t.Errorf("expected new key to authenticate, got %v", err)
	}
}

func TestIssueUserToken(t *testing.T) {
	iss := newTestIssuer(t)
	svc := service.NewAuthService(memory.NewCredentialStore(), iss)

	resp, err := svc.IssueUserToken(context.Background(), types.UserAuthRequest{UserID: "staff-42"})
	if err != nil {
		t.Fatalf("IssueUserToken: %v", err)
	}

	claims, err := iss.Verify(resp.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SubjectType != token.SubjectUser {
		t.Errorf("expected user subject type, got %q", claims.SubjectType)
	}

	if _, err := svc.IssueUserToken(context.Background(), types.UserAuthRequest{}); !errors.Is(err, service.ErrInvalidUserID) {
		t.Errorf("expected ErrInvalidUserID, got %v", err)
	}
}
