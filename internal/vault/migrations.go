package vault

import (
	"database/sql"

	"github.com/HerbHall/netvault/internal/store"
)

// Migrations returns the schema owned by the credential vault.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create credential_store and vault_master",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS vault_master (
						id INTEGER PRIMARY KEY CHECK (id = 1),
						salt BLOB NOT NULL,
						verification_blob BLOB NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE TABLE IF NOT EXISTS credential_store (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL UNIQUE,
						type TEXT NOT NULL,
						encrypted_data BLOB NOT NULL,
						wrapped_key BLOB NOT NULL,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_credential_store_type ON credential_store(type)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
