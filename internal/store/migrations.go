package store

import "database/sql"

// CoreMigrations returns the schema for devices, audit logs and alerts.
func CoreMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create device, audit and alert tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS devices (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL UNIQUE,
						type TEXT NOT NULL DEFAULT 'unknown',
						ip TEXT NOT NULL,
						port INTEGER NOT NULL DEFAULT 0,
						connector_type TEXT NOT NULL,
						config_json TEXT NOT NULL DEFAULT '{}',
						status TEXT NOT NULL DEFAULT 'unknown',
						credential_id INTEGER,
						last_seen DATETIME,
						created_at DATETIME NOT NULL,
						updated_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status)`,

					`CREATE TABLE IF NOT EXISTS audit_logs (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						device_id INTEGER NOT NULL,
						audit_type TEXT NOT NULL,
						run_id TEXT NOT NULL DEFAULT '',
						result_json TEXT NOT NULL,
						status TEXT NOT NULL,
						started_at DATETIME NOT NULL,
						completed_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_audit_logs_device ON audit_logs(device_id, started_at)`,

					`CREATE TABLE IF NOT EXISTS alerts (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						rule_id INTEGER NOT NULL DEFAULT 0,
						device_id INTEGER NOT NULL,
						run_id TEXT NOT NULL DEFAULT '',
						message TEXT NOT NULL,
						severity TEXT NOT NULL,
						acknowledged INTEGER NOT NULL DEFAULT 0,
						triggered_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(acknowledged, triggered_at)`,
				}
				for _, s := range stmts {
					if _, err := tx.Exec(s); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
