package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/busgate.db"

	// Key ring for PII field encryption.  Empty path in dev generates
	// an ephemeral in-process ring.
	KeyRingPath string

	// Token signing.
	TokenSigningKey string // base64, >= 32 bytes decoded
	DeviceTokenTTLS int    // seconds, default 3600
	UserTokenTTLS   int    // seconds, default 900

	// Boarding gate.
	FaceMatchThreshold float64 // default 0.85

	// Heartbeat retention
	HeartbeatRetentionDays int // 0 = keep forever
	PruneIntervalHours     int // how often the pruner runs (default 6)
}

func FromEnv() Config {
	addr := getenvDefault("BUSGATE_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("BUSGATE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("BUSGATE_DB_PATH", "./data/busgate.db")
	keyRingPath := strings.TrimSpace(os.Getenv("BUSGATE_KEYRING_PATH"))
	signingKey := strings.TrimSpace(os.Getenv("BUSGATE_TOKEN_SIGNING_KEY"))

	deviceTTL := getenvInt("BUSGATE_DEVICE_TOKEN_TTL_S", 3600)
	userTTL := getenvInt("BUSGATE_USER_TOKEN_TTL_S", 900)

	threshold := getenvFloat("BUSGATE_FACE_MATCH_THRESHOLD", 0.85)

	retentionDays := getenvInt("BUSGATE_HEARTBEAT_RETENTION_DAYS", 30)
	pruneInterval := getenvInt("BUSGATE_PRUNE_INTERVAL_HOURS", 6)

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		KeyRingPath:     keyRingPath,
		TokenSigningKey: signingKey,
		DeviceTokenTTLS: deviceTTL,
		UserTokenTTLS:   userTTL,

		FaceMatchThreshold: threshold,

		HeartbeatRetentionDays: retentionDays,
		PruneIntervalHours:     pruneInterval,
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return def
	}
	return f
}
