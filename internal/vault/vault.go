// Package vault stores device credentials encrypted at rest and resolves
// them by name for the device manager.
//
// Each credential payload is sealed with its own data-encryption key, which
// is in turn wrapped by a key-encryption key derived from the master key.
package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when no credential matches the requested name or ID.
	ErrNotFound = errors.New("credential not found")

	// ErrNoMasterKey is returned when the master key environment variable is empty.
	ErrNoMasterKey = errors.New("credentials master key not set")

	// ErrExists is returned by Store when the name is already taken.
	ErrExists = errors.New("credential already exists")
)

// Vault is the credential store. Open must succeed before any other call.
type Vault struct {
	store  *credentialStore
	keys   *KeyManager
	logger *zap.Logger
}

// New returns a sealed Vault over db. The caller applies Migrations first.
func New(db *sql.DB, logger *zap.Logger) *Vault {
	return &Vault{
		store:  &credentialStore{db: db},
		keys:   NewKeyManager(),
		logger: logger,
	}
}

// OpenFromEnv unseals the vault with the master key held in envName.
func (v *Vault) OpenFromEnv(ctx context.Context, envName string) error {
	return v.Open(ctx, os.Getenv(envName))
}

// Open unseals the vault. On a fresh database the master key is enrolled;
// afterwards it must match the enrolled key.
func (v *Vault) Open(ctx context.Context, masterKey string) error {
	if strings.TrimSpace(masterKey) == "" {
		return ErrNoMasterKey
	}
	rec, err := v.store.getMaster(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		salt, verification, err := v.keys.FirstRunSetup(masterKey)
		if err != nil {
			return fmt.Errorf("enroll master key: %w", err)
		}
		if err := v.store.insertMaster(ctx, salt, verification); err != nil {
			v.keys.Seal()
			return err
		}
		v.logger.Info("credential vault initialized")
		return nil
	}
	if !v.keys.IsInitialized() {
		v.keys.Initialize(rec.Salt, rec.Verification)
	}
	if err := v.keys.Unseal(masterKey); err != nil {
		return err
	}
	v.logger.Debug("credential vault unsealed")
	return nil
}

// Close seals the vault.
func (v *Vault) Close() {
	v.keys.Seal()
}

// Store encrypts data and saves it under name.
func (v *Vault) Store(ctx context.Context, name, credType string, data map[string]any) (*Credential, error) {
	existing, err := v.store.getByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("store credential %q: %w", name, ErrExists)
	}
	encrypted, wrapped, err := v.seal(data)
	if err != nil {
		return nil, fmt.Errorf("store credential %q: %w", name, err)
	}
	rec := &credentialRecord{
		Credential:    Credential{Name: name, Type: credType},
		EncryptedData: encrypted,
		WrappedKey:    wrapped,
	}
	if err := v.store.insert(ctx, rec); err != nil {
		return nil, err
	}
	v.logger.Info("credential stored", zap.String("name", name), zap.String("type", credType))
	return &rec.Credential, nil
}

// Update replaces the payload of an existing credential.
func (v *Vault) Update(ctx context.Context, name string, data map[string]any) error {
	encrypted, wrapped, err := v.seal(data)
	if err != nil {
		return fmt.Errorf("update credential %q: %w", name, err)
	}
	ok, err := v.store.update(ctx, name, encrypted, wrapped)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("update credential %q: %w", name, ErrNotFound)
	}
	v.logger.Info("credential updated", zap.String("name", name))
	return nil
}

// Delete removes a credential.
func (v *Vault) Delete(ctx context.Context, name string) error {
	ok, err := v.store.delete(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete credential %q: %w", name, ErrNotFound)
	}
	v.logger.Info("credential deleted", zap.String("name", name))
	return nil
}

// List returns credential metadata ordered by name.
func (v *Vault) List(ctx context.Context) ([]Credential, error) {
	return v.store.list(ctx)
}

// Resolve returns the decrypted payload stored under name.
func (v *Vault) Resolve(ctx context.Context, name string) (map[string]any, error) {
	rec, err := v.store.getByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("resolve credential %q: %w", name, ErrNotFound)
	}
	return v.open(rec)
}

// ResolveByID returns the decrypted payload of the credential with the given ID.
func (v *Vault) ResolveByID(ctx context.Context, id int64) (map[string]any, error) {
	rec, err := v.store.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("resolve credential %d: %w", id, ErrNotFound)
	}
	return v.open(rec)
}

func (v *Vault) seal(data map[string]any) (encrypted, wrapped []byte, err error) {
	plain, err := json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("encode payload: %w", err)
	}
	defer ZeroBytes(plain)

	dek, err := GenerateDEK()
	if err != nil {
		return nil, nil, err
	}
	defer ZeroBytes(dek)

	wrapped, err = v.keys.WrapDEK(dek)
	if err != nil {
		return nil, nil, err
	}
	encrypted, err = Seal(dek, plain)
	if err != nil {
		return nil, nil, err
	}
	return encrypted, wrapped, nil
}

func (v *Vault) open(rec *credentialRecord) (map[string]any, error) {
	dek, err := v.keys.UnwrapDEK(rec.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap key for credential %q: %w", rec.Name, err)
	}
	defer ZeroBytes(dek)

	plain, err := Open(dek, rec.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential %q: %w", rec.Name, err)
	}
	defer ZeroBytes(plain)

	var data map[string]any
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, fmt.Errorf("decode credential %q: %w", rec.Name, err)
	}
	return data, nil
}
