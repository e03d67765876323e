// Package vault opens PIN-protected blobs sealed by the holder's wallet. The
// verify flow accepts a presentation as a vault-sealed payload and decrypts
// it before the pipeline runs; nothing decrypted is ever persisted.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// ErrInvalidSecret reports that the secret did not authenticate the
// ciphertext. GCM cannot tell a wrong PIN from tampered data, so both
// surface as this error and no partial plaintext is ever returned.
var ErrInvalidSecret = errors.New("vault: invalid secret")

const (
	saltSize = 16

	// scrypt cost parameters. Interactive-login strength: the secret is a
	// short PIN, so the KDF carries the work factor.
	scryptN = 32768
	scryptR = 8
	scryptP = 1
	keySize = 32
)

// Decrypt opens a vault blob with the holder's secret. The blob layout is a
// 16-byte scrypt salt, followed by the GCM nonce, followed by the sealed
// payload.
func Decrypt(ciphertext []byte, secret string) (string, error) {
	if len(ciphertext) < saltSize {
		return "", fmt.Errorf("vault blob too short: %d bytes", len(ciphertext))
	}
	salt, sealed := ciphertext[:saltSize], ciphertext[saltSize:]

	gcm, err := newCipher(secret, salt)
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("vault blob too short: %d bytes", len(ciphertext))
	}
	nonce, payload := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return "", ErrInvalidSecret
	}
	return string(plaintext), nil
}

// Encrypt seals a payload under the holder's secret with a fresh salt and
// nonce. Used by the enrollment flow and by tests.
func Encrypt(plaintext, secret string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newCipher(secret, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, []byte(plaintext), nil), nil
}

func newCipher(secret string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
