// Package fieldcrypt encrypts individual PII field values (names,
// emails, phone numbers) at rest.  Ciphertexts are tagged with the id
// of the key that produced them, so the ring can rotate to a new key
// without invalidating previously written fields.
package fieldcrypt

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryption is returned when a ciphertext fails authentication
// (tampering or wrong key) or references a key id that is not in the
// active ring.  The error carries no plaintext and no key material.
var ErrDecryption = errors.New("fieldcrypt: decryption failed")

// fieldVersion is prepended to the AEAD additional data together with
// the key id, binding both to the ciphertext: tampering with either
// fails authentication.
const fieldVersion byte = 0x01

// EncryptedField is the stored form of a protected value: ciphertext,
// the id of the encrypting key, and the nonce used.  The plaintext is
// never persisted or logged.
type EncryptedField struct {
	KeyID      string
	Nonce      []byte
	Ciphertext []byte
}

// Cipher performs authenticated encryption of field values against a
// key ring.  Safe for concurrent use.
type Cipher struct {
	ring *Ring
}

func New(ring *Ring) *Cipher {
	return &Cipher{ring: ring}
}

// Encrypt seals plaintext under the ring's active key with a fresh
// random nonce.  Nonces are generated internally and never accepted
// from callers; XChaCha20-Poly1305's 24-byte nonce makes random
// generation collision-safe at any realistic volume.
func (c *Cipher) Encrypt(plaintext []byte) (EncryptedField, error) {
	snap := c.ring.snap.Load()
	return sealWith(snap, snap.activeID, plaintext)
}

// EncryptWithKey seals plaintext under a specific key id in the ring.
// Used by migrations; normal writes go through Encrypt.
func (c *Cipher) EncryptWithKey(plaintext []byte, keyID string) (EncryptedField, error) {
	return sealWith(c.ring.snap.Load(), keyID, plaintext)
}

// Decrypt opens a field using the key identified by its embedded key
// id.  Fails with ErrDecryption when the tag does not verify or the
// key id has been retired from the ring.
func (c *Cipher) Decrypt(f EncryptedField) ([]byte, error) {
	snap := c.ring.snap.Load()

	key, ok := snap.keys[f.KeyID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key id", ErrDecryption)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key material", ErrDecryption)
	}
	if len(f.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length", ErrDecryption)
	}

	plaintext, err := aead.Open(nil, f.Nonce, f.Ciphertext, additionalData(f.KeyID))
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// ReEncrypt migrates a field to the ring's active key.  Fields already
// under the active key are returned unchanged (changed=false), which
// makes batched migration runs idempotent: a second pass over already
// migrated rows rewrites nothing.
func (c *Cipher) ReEncrypt(f EncryptedField) (out EncryptedField, changed bool, err error) {
	snap := c.ring.snap.Load()

	if f.KeyID == snap.activeID {
		return f, false, nil
	}

	plaintext, err := c.Decrypt(f)
	if err != nil {
		return EncryptedField{}, false, err
	}

	out, err = sealWith(snap, snap.activeID, plaintext)
	if err != nil {
		return EncryptedField{}, false, err
	}
	return out, true, nil
}

func sealWith(snap *ringSnapshot, keyID string, plaintext []byte) (EncryptedField, error) {
	key, ok := snap.keys[keyID]
	if !ok {
		return EncryptedField{}, fmt.Errorf("fieldcrypt: key id %q not in ring", keyID)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return EncryptedField{}, fmt.Errorf("fieldcrypt: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return EncryptedField{}, fmt.Errorf("fieldcrypt: generate nonce: %w", err)
	}

	return EncryptedField{
		KeyID:      keyID,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, additionalData(keyID)),
	}, nil
}

func additionalData(keyID string) []byte {
	aad := make([]byte, 1+len(keyID))
	aad[0] = fieldVersion
	copy(aad[1:], keyID)
	return aad
}
