package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/HankHuang0516/wishlist-app-sub000/internal/config"
	"github.com/HankHuang0516/wishlist-app-sub000/internal/domain"
)

func failureTestRepo(t *testing.T) *FailureRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:          "sqlite",
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Minute,
		AutoMigrate:     true,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	return NewFailureRepository(db)
}

func TestAppendAssignsDistinctIDs(t *testing.T) {
	repo := failureTestRepo(t)
	ctx := context.Background()

	// Entries arrive from the pipeline without IDs; each must still land as
	// its own row.
	first := &domain.EnrichmentFailure{
		UserID:       "u1",
		SourceInput:  "https://example-shop.test/item/123",
		ErrorMessage: "model unavailable",
	}
	if err := repo.Append(ctx, first); err != nil {
		t.Fatalf("first Append: %v", err)
	}

	second := &domain.EnrichmentFailure{
		UserID:       "u1",
		SourceInput:  "https://example-shop.test/item/456",
		ErrorMessage: "connection refused",
	}
	if err := repo.Append(ctx, second); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	if first.ID == "" || second.ID == "" {
		t.Errorf("IDs not assigned: %q, %q", first.ID, second.ID)
	}
	if first.ID == second.ID {
		t.Errorf("both entries got ID %q", first.ID)
	}

	count, err := repo.CountByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("CountByUser: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 rows", count)
	}
}

func TestAppendKeepsCallerAssignedID(t *testing.T) {
	repo := failureTestRepo(t)

	entry := &domain.EnrichmentFailure{
		ID:           "fixed-id",
		UserID:       "u2",
		ErrorMessage: "boom",
	}
	if err := repo.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if entry.ID != "fixed-id" {
		t.Errorf("ID rewritten to %q", entry.ID)
	}
}
