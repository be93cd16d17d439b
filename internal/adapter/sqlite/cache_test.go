package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/voxalab/voxa-go/internal/domain"
)

func setupTestCache(t *testing.T) *Cache {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	cache, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCache_SaveAndRecentJobs(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	jobs := []domain.Job{
		{ID: "old", Status: domain.StatusCompleted, Progress: 100,
			CreatedAt: 100, UpdatedAt: 150,
			Result: domain.JobResult{"public_url": "u"}},
		{ID: "new", Status: domain.StatusProcessing, Progress: 40,
			Message: "rendering", CreatedAt: 200},
	}
	if err := cache.SaveJobs(ctx, jobs); err != nil {
		t.Fatalf("SaveJobs() error = %v", err)
	}

	got, err := cache.RecentJobs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentJobs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(RecentJobs()) = %d, want 2", len(got))
	}
	// Most recently updated first; "new" falls back to created_at 200.
	if got[0].ID != "new" || got[1].ID != "old" {
		t.Errorf("order = %s, %s, want new, old", got[0].ID, got[1].ID)
	}
	if got[1].Result.PublicURL() != "u" {
		t.Errorf("result round-trip = %v", got[1].Result)
	}
	if got[0].Message != "rendering" {
		t.Errorf("Message = %q", got[0].Message)
	}
}

func TestCache_SaveJobsUpserts(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	if err := cache.SaveJobs(ctx, []domain.Job{
		{ID: "j", Status: domain.StatusProcessing, Progress: 10, CreatedAt: 100},
	}); err != nil {
		t.Fatalf("SaveJobs() error = %v", err)
	}
	if err := cache.SaveJobs(ctx, []domain.Job{
		{ID: "j", Status: domain.StatusCompleted, Progress: 100, CreatedAt: 100, UpdatedAt: 120,
			Result: domain.JobResult{"public_url": "u"}},
	}); err != nil {
		t.Fatalf("second SaveJobs() error = %v", err)
	}

	got, err := cache.RecentJobs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentJobs() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(RecentJobs()) = %d, want 1 after upsert", len(got))
	}
	if got[0].Status != domain.StatusCompleted || got[0].Progress != 100 {
		t.Errorf("snapshot not replaced: %+v", got[0])
	}
}

func TestCache_Selection(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	got, err := cache.Selection(ctx)
	if err != nil {
		t.Fatalf("Selection() error = %v", err)
	}
	if got != "" {
		t.Errorf("Selection() = %q on empty cache, want empty", got)
	}

	if err := cache.SaveSelection(ctx, "job1"); err != nil {
		t.Fatalf("SaveSelection() error = %v", err)
	}
	if got, _ = cache.Selection(ctx); got != "job1" {
		t.Errorf("Selection() = %q, want job1", got)
	}

	if err := cache.SaveSelection(ctx, "job2"); err != nil {
		t.Fatalf("SaveSelection() replace error = %v", err)
	}
	if got, _ = cache.Selection(ctx); got != "job2" {
		t.Errorf("Selection() = %q, want job2", got)
	}

	if err := cache.SaveSelection(ctx, ""); err != nil {
		t.Fatalf("SaveSelection() clear error = %v", err)
	}
	if got, _ = cache.Selection(ctx); got != "" {
		t.Errorf("Selection() = %q after clear, want empty", got)
	}
}
