package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type credentialStore struct {
	db *sql.DB
}

func (s *credentialStore) getMaster(ctx context.Context) (*masterRecord, error) {
	var rec masterRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT salt, verification_blob FROM vault_master WHERE id = 1`,
	).Scan(&rec.Salt, &rec.Verification)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get master key record: %w", err)
	}
	return &rec, nil
}

func (s *credentialStore) insertMaster(ctx context.Context, salt, verification []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_master (id, salt, verification_blob, created_at) VALUES (1, ?, ?, ?)`,
		salt, verification, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert master key record: %w", err)
	}
	return nil
}

func (s *credentialStore) insert(ctx context.Context, rec *credentialRecord) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO credential_store (name, type, encrypted_data, wrapped_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Name, rec.Type, rec.EncryptedData, rec.WrappedKey, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

func (s *credentialStore) getByName(ctx context.Context, name string) (*credentialRecord, error) {
	return s.get(ctx, `WHERE name = ?`, name)
}

func (s *credentialStore) getByID(ctx context.Context, id int64) (*credentialRecord, error) {
	return s.get(ctx, `WHERE id = ?`, id)
}

func (s *credentialStore) get(ctx context.Context, where string, arg any) (*credentialRecord, error) {
	var rec credentialRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, encrypted_data, wrapped_key, created_at, updated_at
		FROM credential_store `+where, arg,
	).Scan(&rec.ID, &rec.Name, &rec.Type, &rec.EncryptedData, &rec.WrappedKey, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &rec, nil
}

func (s *credentialStore) list(ctx context.Context) ([]Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, type, created_at, updated_at FROM credential_store ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func (s *credentialStore) update(ctx context.Context, name string, encrypted, wrapped []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE credential_store SET encrypted_data = ?, wrapped_key = ?, updated_at = ?
		WHERE name = ?`,
		encrypted, wrapped, time.Now().UTC(), name,
	)
	if err != nil {
		return false, fmt.Errorf("update credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update credential: %w", err)
	}
	return n > 0, nil
}

func (s *credentialStore) delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credential_store WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	return n > 0, nil
}
