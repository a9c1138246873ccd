package vault

import (
	"errors"
	"sync"
)

var (
	// ErrSealed is returned when an operation needs the KEK and none is loaded.
	ErrSealed = errors.New("credential vault is sealed")

	// ErrWrongMasterKey is returned when the master key does not match the
	// verification blob stored with the database.
	ErrWrongMasterKey = errors.New("wrong credentials master key")
)

// KeyManager holds the KEK in memory. All methods are safe for concurrent use.
type KeyManager struct {
	mu           sync.RWMutex
	kek          []byte // nil when sealed
	salt         []byte
	verification []byte
	initialized  bool
}

// NewKeyManager returns a sealed, uninitialized KeyManager.
func NewKeyManager() *KeyManager {
	return &KeyManager{}
}

// Initialize loads the stored salt and verification blob without unsealing.
func (km *KeyManager) Initialize(salt, verification []byte) {
	km.mu.Lock()
	defer km.mu.Unlock()
	km.salt = salt
	km.verification = verification
	km.initialized = true
}

// IsSealed reports whether no KEK is loaded.
func (km *KeyManager) IsSealed() bool {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.kek == nil
}

// IsInitialized reports whether a salt and verification blob are loaded.
func (km *KeyManager) IsInitialized() bool {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.initialized
}

// Unseal derives the KEK from masterKey and checks it against the
// verification blob.
func (km *KeyManager) Unseal(masterKey string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if !km.initialized {
		return errors.New("key manager not initialized")
	}
	if km.kek != nil {
		return nil
	}

	kek := DeriveKEK(masterKey, km.salt)
	if !VerifyKEK(kek, km.verification) {
		ZeroBytes(kek)
		return ErrWrongMasterKey
	}
	km.kek = kek
	return nil
}

// FirstRunSetup creates a salt and verification blob for masterKey and
// leaves the manager unsealed. The caller persists the returned values.
func (km *KeyManager) FirstRunSetup(masterKey string) (salt, verification []byte, err error) {
	km.mu.Lock()
	defer km.mu.Unlock()

	if km.initialized {
		return nil, nil, errors.New("key manager already initialized")
	}

	salt, err = GenerateSalt()
	if err != nil {
		return nil, nil, err
	}
	kek := DeriveKEK(masterKey, salt)
	verification, err = CreateVerificationBlob(kek)
	if err != nil {
		ZeroBytes(kek)
		return nil, nil, err
	}

	km.salt = salt
	km.verification = verification
	km.kek = kek
	km.initialized = true
	return salt, verification, nil
}

// Seal zeroes the KEK.
func (km *KeyManager) Seal() {
	km.mu.Lock()
	defer km.mu.Unlock()
	if km.kek != nil {
		ZeroBytes(km.kek)
		km.kek = nil
	}
}

// WrapDEK seals a data-encryption key with the KEK.
func (km *KeyManager) WrapDEK(dek []byte) ([]byte, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if km.kek == nil {
		return nil, ErrSealed
	}
	return Seal(km.kek, dek)
}

// UnwrapDEK opens a data-encryption key wrapped by WrapDEK.
func (km *KeyManager) UnwrapDEK(wrapped []byte) ([]byte, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if km.kek == nil {
		return nil, ErrSealed
	}
	return Open(km.kek, wrapped)
}
