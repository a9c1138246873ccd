package vault

import "time"

// Credential is the metadata of a stored secret. The decrypted payload is
// only ever returned by Resolve and ResolveByID.
type Credential struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type masterRecord struct {
	Salt         []byte
	Verification []byte
}

type credentialRecord struct {
	Credential
	EncryptedData []byte
	WrappedKey    []byte
}
