package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HerbHall/tubedeck/pkg/plugin"
)

// MigrateAuth creates the auth_users and auth_sessions tables.
func MigrateAuth(ctx context.Context, store plugin.Store) error {
	if err := store.Migrate(ctx, "auth", authMigrations); err != nil {
		return fmt.Errorf("auth migrations: %w", err)
	}
	return nil
}

var authMigrations = []plugin.Migration{
	{
		Version:     1,
		Description: "create auth_users table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE auth_users (
					id         TEXT PRIMARY KEY,
					email      TEXT NOT NULL,
					name       TEXT NOT NULL DEFAULT '',
					picture    TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					last_login DATETIME
				)`)
			return err
		},
	},
	{
		Version:     2,
		Description: "create auth_sessions table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE auth_sessions (
					id            TEXT PRIMARY KEY,
					user_id       TEXT NOT NULL REFERENCES auth_users(id) ON DELETE CASCADE,
					access_token  TEXT NOT NULL,
					refresh_token TEXT NOT NULL DEFAULT '',
					token_type    TEXT NOT NULL DEFAULT 'Bearer',
					token_expiry  DATETIME,
					created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					last_seen     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					expires_at    DATETIME NOT NULL
				)`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`CREATE INDEX idx_auth_sessions_expires ON auth_sessions(expires_at)`)
			return err
		},
	},
}
