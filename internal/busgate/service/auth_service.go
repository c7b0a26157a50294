package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/busgate/server/internal/busgate/secrets"
	"github.com/busgate/server/internal/busgate/store"
	"github.com/busgate/server/internal/busgate/token"
	"github.com/busgate/server/internal/busgate/types"
)

var (
	// ErrAuthentication covers every device-auth failure: unknown
	// device id, deactivated credential, wrong API key.  One error for
	// all three so responses cannot be used to enumerate device ids.
	ErrAuthentication = errors.New("authentication failed")

	ErrInvalidDeviceID = errors.New("device_id is required")
	ErrInvalidAPIKey   = errors.New("api_key is required")
	ErrInvalidUserID   = errors.New("user_id is required")
)

type AuthService struct {
	creds  store.CredentialStore
	issuer *token.Issuer
}

func NewAuthService(creds store.CredentialStore, issuer *token.Issuer) *AuthService {
	return &AuthService{creds: creds, issuer: issuer}
}

// IssueDeviceToken authenticates a kiosk by device id + API key and
// mints a device-scoped capability token.
func (s *AuthService) IssueDeviceToken(ctx context.Context, req types.DeviceAuthRequest) (types.AuthResponse, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	apiKey := req.APIKey

	if deviceID == "" {
		return types.AuthResponse{}, ErrInvalidDeviceID
	}
	if apiKey == "" {
		return types.AuthResponse{}, ErrInvalidAPIKey
	}

	cred, err := s.creds.GetCredential(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return types.AuthResponse{}, ErrAuthentication
	}
	if err != nil {
		return types.AuthResponse{}, err
	}

	if !cred.Active {
		return types.AuthResponse{}, ErrAuthentication
	}
	if !secrets.Verify(apiKey, cred.SecretHash) {
		return types.AuthResponse{}, ErrAuthentication
	}

	signed, expiresAt, err := s.issuer.IssueDeviceToken(deviceID)
	if err != nil {
		return types.AuthResponse{}, err
	}

	return types.AuthResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// IssueUserToken mints a user-scoped token for a staff identity.  The
// identity itself is asserted by an upstream login flow; this core
// only shapes the token.
func (s *AuthService) IssueUserToken(_ context.Context, req types.UserAuthRequest) (types.AuthResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return types.AuthResponse{}, ErrInvalidUserID
	}

	signed, expiresAt, err := s.issuer.IssueUserToken(userID)
	if err != nil {
		return types.AuthResponse{}, err
	}

	return types.AuthResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}
