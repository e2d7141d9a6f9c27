package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/HerbHall/tubedeck/internal/services"
	"github.com/HerbHall/tubedeck/internal/testutil"
)

func newSettingsRepo(t *testing.T) services.SettingsRepository {
	t.Helper()
	store := testutil.NewStore(t)
	repo, err := services.NewSQLiteSettingsRepository(context.Background(), store)
	if err != nil {
		t.Fatalf("NewSQLiteSettingsRepository: %v", err)
	}
	return repo
}

func TestSQLiteSettingsRepository_SetAndGet(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "site_name", "TubeDeck"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s, err := repo.Get(ctx, "site_name")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Key != "site_name" {
		t.Errorf("Key = %q, want %q", s.Key, "site_name")
	}
	if s.Value != "TubeDeck" {
		t.Errorf("Value = %q, want %q", s.Value, "TubeDeck")
	}
	if s.UpdatedAt.IsZero() {
		t.Error("UpdatedAt is zero")
	}
}

func TestSQLiteSettingsRepository_SetOverwrite(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "theme", "light"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	s, err := repo.Get(ctx, "theme")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Value != "dark" {
		t.Errorf("Value = %q, want %q", s.Value, "dark")
	}
}

func TestSQLiteSettingsRepository_GetNotFound(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "nonexistent")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Get nonexistent = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSettingsRepository_Delete(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "to_delete", "value"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Delete(ctx, "to_delete"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, err := repo.Get(ctx, "to_delete")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSettingsRepository_DeleteNotFound(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	err := repo.Delete(ctx, "nonexistent")
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Delete nonexistent = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSettingsRepository_GetOrCreate(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()

	calls := 0
	gen := func() (string, error) {
		calls++
		return "generated-secret", nil
	}

	v, err := repo.GetOrCreate(ctx, "session_secret", gen)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if v != "generated-secret" {
		t.Errorf("value = %q, want generated-secret", v)
	}

	v, err = repo.GetOrCreate(ctx, "session_secret", gen)
	if err != nil {
		t.Fatalf("GetOrCreate second: %v", err)
	}
	if v != "generated-secret" || calls != 1 {
		t.Errorf("second call = %q after %d generations, want stored value after 1", v, calls)
	}
}

func TestSQLiteSettingsRepository_GetOrCreateGenerateError(t *testing.T) {
	repo := newSettingsRepo(t)
	ctx := context.Background()
	boom := errors.New("no entropy")

	_, err := repo.GetOrCreate(ctx, "k", func() (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrCreate error = %v, want wrapping %v", err, boom)
	}
	if _, err := repo.Get(ctx, "k"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Get after failed generate = %v, want ErrNotFound", err)
	}
}
