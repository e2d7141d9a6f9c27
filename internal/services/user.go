package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a Google account that has signed in. ID is the stable Google
// subject identifier.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

// UserRepository provides access to signed-in users.
type UserRepository interface {
	// Get returns a single user by ID.
	Get(ctx context.Context, id string) (*User, error)

	// Upsert records a sign-in: it creates the user or refreshes the
	// profile fields, and sets LastLogin. CreatedAt of an existing user is
	// preserved.
	Upsert(ctx context.Context, user *User) error

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)
}

// Compile-time interface guard.
var _ UserRepository = (*SQLiteUserRepository)(nil)

// SQLiteUserRepository implements UserRepository using SQLite.
// It queries the auth_users table directly.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a UserRepository.
// The auth tables must already exist (see MigrateAuth).
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// userColumns is the shared SELECT column list for user queries.
const userColumns = `id, email, name, picture, created_at, last_login`

func (r *SQLiteUserRepository) Get(ctx context.Context, id string) (*User, error) {
	var u User
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM auth_users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Picture, &u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %q: %w", id, err)
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	return &u, nil
}

func (r *SQLiteUserRepository) Upsert(ctx context.Context, user *User) error {
	if user.ID == "" {
		return errors.New("upsert user: empty id")
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.LastLogin = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_users (id, email, name, picture, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			picture = excluded.picture,
			last_login = excluded.last_login`,
		user.ID, user.Email, user.Name, user.Picture, user.CreatedAt, user.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	// Report the stored creation time, not the one we attempted to insert.
	return r.db.QueryRowContext(ctx,
		`SELECT created_at FROM auth_users WHERE id = ?`, user.ID,
	).Scan(&user.CreatedAt)
}

func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auth_users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
