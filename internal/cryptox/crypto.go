// Package cryptox implements the encryption codec for backup payloads.
//
// A value is serialized to JSON and sealed with AES-256-GCM; the blob layout
// is nonce||ciphertext. The key is derived from the user's master password
// with argon2id. Any blob that is malformed, truncated, or fails
// authentication yields an error matching ErrDecryption.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const nonceSize = 12

// ErrDecryption marks a blob that could not be decoded or authenticated.
// Callers must treat it as fatal to the current restore attempt.
var ErrDecryption = errors.New("decryption failed")

// DeriveKey derives a 32-byte AES key from a master password and salt using
// argon2id. Same inputs always produce the same key.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// EncryptJSON serializes v to JSON and encrypts it with AES-GCM.
// A fresh random nonce is generated per call and prepended to the
// ciphertext. It fails only on serialization or cipher setup errors.
func EncryptJSON(v any, key []byte) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptJSON authenticates and decrypts a blob produced by EncryptJSON and
// unmarshals the plaintext into v. Tampered, truncated or otherwise invalid
// blobs return an error wrapping ErrDecryption.
func DecryptJSON(blob, key []byte, v any) error {
	if len(blob) < nonceSize {
		return fmt.Errorf("%w: blob too short", ErrDecryption)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
