package fieldcrypt

import (
	"encoding/base64"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"
	"gopkg.in/yaml.v3"
)

// Ring holds the set of currently valid field-encryption keys, indexed
// by key id.  The ring is an immutable snapshot behind an atomic
// pointer: Rotate swaps the whole snapshot, so a reader sees either the
// old ring or the new one in full, never a partial view.  In-flight
// decrypts that resolved an old snapshot keep working against it.
type Ring struct {
	snap atomic.Pointer[ringSnapshot]
}

type ringSnapshot struct {
	activeID string
	keys     map[string][]byte
}

// NewRing builds a ring from raw key material.  Every key must be
// exactly 32 bytes and activeID must be present in keys.
func NewRing(activeID string, keys map[string][]byte) (*Ring, error) {
	snap, err := newSnapshot(activeID, keys)
	if err != nil {
		return nil, err
	}
	r := &Ring{}
	r.snap.Store(snap)
	return r, nil
}

// Rotate atomically replaces the ring contents.  Retained old key ids
// keep decrypting; key ids absent from the new mapping are retired and
// fields still encrypted under them will fail to decrypt.
func (r *Ring) Rotate(activeID string, keys map[string][]byte) error {
	snap, err := newSnapshot(activeID, keys)
	if err != nil {
		return err
	}
	r.snap.Store(snap)
	return nil
}

// ActiveKeyID returns the key id new encryptions are performed under.
func (r *Ring) ActiveKeyID() string {
	return r.snap.Load().activeID
}

func newSnapshot(activeID string, keys map[string][]byte) (*ringSnapshot, error) {
	if activeID == "" {
		return nil, fmt.Errorf("fieldcrypt: active key id is required")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("fieldcrypt: key ring is empty")
	}

	copied := make(map[string][]byte, len(keys))
	for id, key := range keys {
		if id == "" {
			return nil, fmt.Errorf("fieldcrypt: empty key id")
		}
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("fieldcrypt: key %q must be %d bytes, got %d",
				id, chacha20poly1305.KeySize, len(key))
		}
		k := make([]byte, len(key))
		copy(k, key)
		copied[id] = k
	}

	if _, ok := copied[activeID]; !ok {
		return nil, fmt.Errorf("fieldcrypt: active key id %q not in ring", activeID)
	}

	return &ringSnapshot{activeID: activeID, keys: copied}, nil
}

// ringFile is the on-disk key ring format:
//
//	active: k2
//	keys:
//	  k1: <base64 32-byte key>
//	  k2: <base64 32-byte key>
type ringFile struct {
	Active string            `yaml:"active"`
	Keys   map[string]string `yaml:"keys"`
}

// LoadRingFile reads a key ring from a YAML file.  Storage and
// distribution of the file are an external collaborator's concern.
func LoadRingFile(path string) (*Ring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key ring: %w", err)
	}

	var rf ringFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse key ring: %w", err)
	}

	keys := make(map[string][]byte, len(rf.Keys))
	for id, enc := range rf.Keys {
		key, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("decode key %q: %w", id, err)
		}
		keys[id] = key
	}

	return NewRing(rf.Active, keys)
}
