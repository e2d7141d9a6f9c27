package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Session is a signed-in browser session holding the user's Google OAuth
// tokens. Tokens never leave the server.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeen     time.Time `json:"last_seen"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Token returns the session's OAuth token.
func (s *Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.TokenExpiry,
	}
}

// SetToken copies tok into the session.
func (s *Session) SetToken(tok *oauth2.Token) {
	s.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.RefreshToken = tok.RefreshToken
	}
	s.TokenType = tok.TokenType
	s.TokenExpiry = tok.Expiry.UTC()
}

// Expired reports whether the session is past its lifetime at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionRepository provides access to browser sessions.
type SessionRepository interface {
	// Create inserts a session. If ID is empty, a UUID is generated.
	Create(ctx context.Context, s *Session) error

	// Get returns a session by ID. Expiry is not checked.
	Get(ctx context.Context, id string) (*Session, error)

	// UpdateToken stores a refreshed OAuth token.
	UpdateToken(ctx context.Context, id string, tok *oauth2.Token) error

	// Touch records activity on a session.
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes sessions whose lifetime ended before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Compile-time interface guard.
var _ SessionRepository = (*SQLiteSessionRepository)(nil)

// SQLiteSessionRepository implements SessionRepository using SQLite.
type SQLiteSessionRepository struct {
	db *sql.DB
}

// NewSQLiteSessionRepository creates a SessionRepository.
// The auth tables must already exist (see MigrateAuth).
func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

const sessionColumns = `id, user_id, access_token, refresh_token, token_type,
	token_expiry, created_at, last_seen, expires_at`

func (r *SQLiteSessionRepository) Create(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastSeen.IsZero() {
		s.LastSeen = s.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.AccessToken, s.RefreshToken, s.TokenType,
		s.TokenExpiry.UTC(), s.CreatedAt, s.LastSeen, s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepository) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM auth_sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.AccessToken, &s.RefreshToken, &s.TokenType,
		&s.TokenExpiry, &s.CreatedAt, &s.LastSeen, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session %q: %w", id, err)
	}
	return &s, nil
}

func (r *SQLiteSessionRepository) UpdateToken(ctx context.Context, id string, tok *oauth2.Token) error {
	// An empty refresh token means the provider did not rotate it.
	res, err := r.db.ExecContext(ctx, `
		UPDATE auth_sessions SET
			access_token = ?,
			refresh_token = CASE WHEN ? = '' THEN refresh_token ELSE ? END,
			token_type = ?,
			token_expiry = ?
		WHERE id = ?`,
		tok.AccessToken, tok.RefreshToken, tok.RefreshToken, tok.TokenType, tok.Expiry.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update session token: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE auth_sessions SET last_seen = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteSessionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
