package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-site-api/internal/domain"
	"golang.org/x/crypto/scrypt"
)

const (
	nonceSize = 12
	tagSize   = 16
	keySize   = 32

	// salt is fixed: the key only needs to be slow to brute-force from the
	// server secret, not unique per record. The same secret must derive the
	// same key across process restarts or outstanding links break.
	salt = "encrypted-magic-link-salt"

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Cipher provides authenticated symmetric encryption of opaque strings.
// The AES-256 key is derived once from the server secret; construct a single
// Cipher at startup and share it for the process lifetime.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 256-bit key from secret via scrypt and wraps it in
// AES-GCM. Derivation is deliberately slow; it runs once per process.
func NewCipher(secret string) (*Cipher, error) {
	key, err := scrypt.Key([]byte(secret), []byte(salt), scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the result
// as "hex(nonce):hex(tag):hex(ciphertext)". Nonces are never reused.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal appends the tag after the ciphertext.
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return fmt.Sprintf("%s:%s:%s", hex.EncodeToString(nonce), hex.EncodeToString(tag), hex.EncodeToString(ct)), nil
}

// Decrypt reverses Encrypt. It returns domain.ErrInvalidFormat when the blob
// does not have three non-empty hex segments, and domain.ErrAuthFailed when
// the authentication tag does not verify (tampering or a wrong key).
func (c *Cipher) Decrypt(blob string) (string, error) {
	parts := strings.Split(blob, ":")
	if len(parts) < 3 {
		return "", domain.ErrInvalidFormat
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize || parts[1] == "" || parts[2] == "" {
		return "", domain.ErrInvalidFormat
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", domain.ErrInvalidFormat
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", domain.ErrInvalidFormat
	}
	plaintext, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", domain.ErrAuthFailed
	}
	return string(plaintext), nil
}
