package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HerbHall/tubedeck/internal/services"
	"github.com/HerbHall/tubedeck/internal/testutil"
)

func newAuthStore(t *testing.T) (services.UserRepository, services.SessionRepository) {
	t.Helper()
	store := testutil.NewStore(t)
	if err := services.MigrateAuth(context.Background(), store); err != nil {
		t.Fatalf("MigrateAuth: %v", err)
	}
	return services.NewSQLiteUserRepository(store.DB()), services.NewSQLiteSessionRepository(store.DB())
}

func TestSQLiteUserRepository_UpsertAndGet(t *testing.T) {
	users, _ := newAuthStore(t)
	ctx := context.Background()

	u := &services.User{ID: "google-sub-1", Email: "ada@example.com", Name: "Ada"}
	if err := users.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := users.Get(ctx, "google-sub-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != "ada@example.com" || got.Name != "Ada" {
		t.Errorf("Get = %+v, want ada@example.com / Ada", got)
	}
	if got.CreatedAt.IsZero() || got.LastLogin.IsZero() {
		t.Errorf("timestamps not set: created %v, last login %v", got.CreatedAt, got.LastLogin)
	}
}

func TestSQLiteUserRepository_UpsertPreservesCreatedAt(t *testing.T) {
	users, _ := newAuthStore(t)
	ctx := context.Background()

	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := users.Upsert(ctx, &services.User{ID: "u1", Email: "old@example.com", CreatedAt: created}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	again := &services.User{ID: "u1", Email: "new@example.com", Name: "Renamed"}
	if err := users.Upsert(ctx, again); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if !again.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want stored %v", again.CreatedAt, created)
	}

	got, err := users.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != "new@example.com" || got.Name != "Renamed" {
		t.Errorf("profile not refreshed: %+v", got)
	}

	n, err := users.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestSQLiteUserRepository_GetNotFound(t *testing.T) {
	users, _ := newAuthStore(t)

	_, err := users.Get(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestSQLiteUserRepository_UpsertEmptyID(t *testing.T) {
	users, _ := newAuthStore(t)

	if err := users.Upsert(context.Background(), &services.User{Email: "x@example.com"}); err == nil {
		t.Error("Upsert with empty ID should fail")
	}
}
