// Package secrets hashes and verifies device API keys.
//
// Hashing uses argon2id with a per-hash random salt, encoded in the
// standard PHC string format so parameters travel with the digest and
// can be raised later without invalidating stored hashes.
package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Default argon2id parameters.  64 MiB / 3 passes keeps a single verify
// well under the interactive budget on server hardware while staying
// expensive enough to make offline brute force of leaked digests slow.
const (
	defaultMemoryKiB = 64 * 1024
	defaultTime      = 3
	defaultThreads   = 2
	saltLen          = 16
	keyLen           = 32
)

// Hash derives an argon2id digest of secret under a fresh random salt.
// The same secret hashed twice yields different digests.
func Hash(secret string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, defaultTime, defaultMemoryKiB, defaultThreads, keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, defaultMemoryKiB, defaultTime, defaultThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches digest.  The comparison is
// constant time in the derived key.  A malformed digest never panics
// or errors; it simply fails to verify.
func Verify(secret, digest string) bool {
	salt, want, time, memoryKiB, threads, ok := parseDigest(digest)
	if !ok {
		return false
	}

	got := argon2.IDKey([]byte(secret), salt, time, memoryKiB, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func parseDigest(digest string) (salt, key []byte, time, memoryKiB uint32, threads uint8, ok bool) {
	parts := strings.Split(digest, "$")
	// "", "argon2id", "v=19", "m=...,t=...,p=...", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, false
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKiB, &time, &threads); err != nil {
		return nil, nil, 0, 0, 0, false
	}
	if memoryKiB == 0 || time == 0 || threads == 0 {
		return nil, nil, 0, 0, 0, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, nil, 0, 0, 0, false
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, 0, 0, 0, false
	}

	return salt, key, time, memoryKiB, threads, true
}
