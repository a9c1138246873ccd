package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the key-encryption key from the
// CREDENTIALS_MASTER_KEY value.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	keyLen       = 32 // AES-256
	saltLen      = 16
	nonceLen     = 12
)

var verificationMagic = []byte("netvault-credentials-v1")

// DeriveKEK derives a 32-byte key-encryption key from the master key and salt.
func DeriveKEK(masterKey string, salt []byte) []byte {
	return argon2.IDKey([]byte(masterKey), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// GenerateSalt returns a random salt for DeriveKEK.
func GenerateSalt() ([]byte, error) {
	return randomBytes(saltLen, "salt")
}

// GenerateDEK returns a random per-credential data-encryption key.
func GenerateDEK() ([]byte, error) {
	return randomBytes(keyLen, "DEK")
}

// Seal encrypts plaintext with AES-256-GCM. The result is nonce || ciphertext+tag.
func Seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes(nonceLen, "nonce")
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(key, data []byte) ([]byte, error) {
	if len(data) < nonceLen {
		return nil, errors.New("ciphertext too short")
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, data[:nonceLen], data[nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}

// CreateVerificationBlob seals a known plaintext with the KEK so a later
// start can tell whether it was given the same master key.
func CreateVerificationBlob(kek []byte) ([]byte, error) {
	return Seal(kek, verificationMagic)
}

// VerifyKEK reports whether kek opens the verification blob.
func VerifyKEK(kek, blob []byte) bool {
	plain, err := Open(kek, blob)
	if err != nil {
		return false
	}
	return bytes.Equal(plain, verificationMagic)
}

// ZeroBytes overwrites b with zeros.
func ZeroBytes(b []byte) {
	clear(b)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

func randomBytes(n int, what string) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate %s: %w", what, err)
	}
	return b, nil
}
