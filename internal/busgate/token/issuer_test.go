package token_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/busgate/server/internal/busgate/token"
)

var testSigningKey = bytes.Repeat([]byte{0xA5}, 32)

func newTestIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	iss, err := token.NewIssuer(testSigningKey, time.Hour, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueDeviceToken_VerifyRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)

	signed, expiresAt, err := iss.IssueDeviceToken("bus-07")
	if err != nil {
		t.Fatalf("IssueDeviceToken: %v", err)
	}

	if got := time.Until(expiresAt); got < 59*time.Minute || got > 61*time.Minute {
		t.Errorf("expected ~1h TTL, got %s", got)
	}

	claims, err := iss.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "bus-07" {
		t.Errorf("expected subject bus-07, got %q", claims.Subject)
	}
	if claims.SubjectType != token.SubjectDevice {
		t.Errorf("expected subject type device, got %q", claims.SubjectType)
	}
	if !claims.HasScope(token.ScopeHeartbeat) || !claims.HasScope(token.ScopeLogEvent) {
		t.Errorf("expected device scope set {heartbeat, log-event}, got %v", claims.Scopes)
	}
	if claims.HasScope(token.ScopeReadEvents) {
		t.Error("device token must not carry user scopes")
	}
	if claims.ID == "" {
		t.Error("expected a jti")
	}
}

func TestIssueUserToken_ShorterTTLAndUserScopes(t *testing.T) {
	iss := newTestIssuer(t)

	signed, expiresAt, err := iss.IssueUserToken("staff-42")
	if err != nil {
		t.Fatalf("IssueUserToken: %v", err)
	}
	if got := time.Until(expiresAt); got > 16*time.Minute {
		t.Errorf("expected ~15m TTL, got %s", got)
	}

	claims, err := iss.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.SubjectType != token.SubjectUser {
		t.Errorf("expected subject type user, got %q", claims.SubjectType)
	}
	if claims.HasScope(token.ScopeLogEvent) {
		t.Error("user token must not carry the log-event scope")
	}
}

func TestVerify_Expired_ReturnsErrExpired(t *testing.T) {
	iss := newTestIssuer(t)

	signed, _, err := iss.IssueDeviceToken("bus-07")
	if err != nil {
		t.Fatalf("IssueDeviceToken: %v", err)
	}

	// Move the clock past the device TTL.
	iss.SetNowForTest(func() time.Time { return time.Now().Add(2 * time.Hour) })

	_, err = iss.Verify(signed)
	if !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if errors.Is(err, token.ErrInvalid) {
		t.Error("expired well-formed tokens must not map to ErrInvalid")
	}
}

func TestVerify_Garbage_ReturnsErrInvalid(t *testing.T) {
	iss := newTestIssuer(t)

	for _, s := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := iss.Verify(s); !errors.Is(err, token.ErrInvalid) {
			t.Errorf("expected ErrInvalid for %q, got %v", s, err)
		}
	}
}

func TestVerify_WrongSigningKey_ReturnsErrInvalid(t *testing.T) {
	iss := newTestIssuer(t)

	signed, _, err := iss.IssueDeviceToken("bus-07")
	if err != nil {
		t.Fatalf("IssueDeviceToken: %v", err)
	}

	other, err := token.NewIssuer(bytes.Repeat([]byte{0x5A}, 32), time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	if _, err := other.Verify(signed); !errors.Is(err, token.ErrInvalid) {
		t.Errorf("expected ErrInvalid for wrong signing key, got %v", err)
	}
}

func TestVerify_TamperedPayload_ReturnsErrInvalid(t *testing.T) {
	iss := newTestIssuer(t)

	signed, _, err := iss.IssueDeviceToken("bus-07")
	if err != nil {
		t.Fatalf("IssueDeviceToken: %v", err)
	}

	tampered := []byte(signed)
	tampered[len(tampered)/2] ^= 0x01

	if _, err := iss.Verify(string(tampered)); !errors.Is(err, token.ErrInvalid) {
		t.Errorf("expected ErrInvalid for tampered token, got %v", err)
	}
}

func TestNewIssuer_ShortKeyRejected(t *testing.T) {
	if _, err := token.NewIssuer([]byte("too short"), time.Hour, time.Minute); err == nil {
		t.Error("expected error for a short signing key")
	}
}
