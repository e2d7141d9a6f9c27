package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HerbHall/tubedeck/internal/services"
	"golang.org/x/oauth2"
)

func newSessionFixture(t *testing.T) services.SessionRepository {
	t.Helper()
	users, sessions := newAuthStore(t)
	if err := users.Upsert(context.Background(), &services.User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return sessions
}

func TestSQLiteSessionRepository_CreateAndGet(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	s := &services.Session{
		UserID:       "u1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		TokenExpiry:  expiry,
		ExpiresAt:    time.Now().Add(24 * time.Hour).UTC(),
	}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("Create did not generate an ID")
	}

	got, err := sessions.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	tok := got.Token()
	if tok.AccessToken != "access" || tok.RefreshToken != "refresh" || !tok.Expiry.Equal(expiry) {
		t.Errorf("Token() = %+v, want stored token", tok)
	}
	if got.Expired(time.Now()) {
		t.Error("new session reported expired")
	}
}

func TestSQLiteSessionRepository_UpdateTokenKeepsRefresh(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()

	s := &services.Session{UserID: "u1", AccessToken: "a1", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := sessions.UpdateToken(ctx, s.ID, &oauth2.Token{AccessToken: "a2", TokenType: "Bearer"}); err != nil {
		t.Fatalf("UpdateToken: %v", err)
	}
	got, err := sessions.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != "a2" || got.RefreshToken != "r1" {
		t.Errorf("tokens = %q/%q, want a2/r1", got.AccessToken, got.RefreshToken)
	}

	if err := sessions.UpdateToken(ctx, "missing", &oauth2.Token{AccessToken: "x"}); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("UpdateToken missing = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSessionRepository_Touch(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()

	s := &services.Session{UserID: "u1", AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	seen := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := sessions.Touch(ctx, s.ID, seen); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	got, err := sessions.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, seen)
	}
}

func TestSQLiteSessionRepository_Delete(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()

	s := &services.Session{UserID: "u1", AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sessions.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := sessions.Get(ctx, s.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if err := sessions.Delete(ctx, s.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSessionRepository_DeleteExpired(t *testing.T) {
	sessions := newSessionFixture(t)
	ctx := context.Background()
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	old := &services.Session{UserID: "u1", AccessToken: "a", ExpiresAt: now.Add(-time.Minute)}
	live := &services.Session{UserID: "u1", AccessToken: "b", ExpiresAt: now.Add(time.Minute)}
	for _, s := range []*services.Session{old, live} {
		if err := sessions.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := sessions.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired removed %d, want 1", n)
	}
	if _, err := sessions.Get(ctx, live.ID); err != nil {
		t.Errorf("live session removed: %v", err)
	}
	if !old.Expired(now) || live.Expired(now) {
		t.Error("Expired() disagrees with DeleteExpired")
	}
}
