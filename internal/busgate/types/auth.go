package types

type DeviceAuthRequest struct {
	DeviceID string `json:"device_id"`
	APIKey   string `json:"api_key"`
}

type UserAuthRequest struct {
	UserID string `json:"user_id"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
