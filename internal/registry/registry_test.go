package registry

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/voxalab/voxa-go/internal/domain"
)

type listCall struct {
	page, pageSize int
}

// mockLister serves a fixed job list, paginated server-side.
type mockLister struct {
	mu    sync.Mutex
	jobs  []domain.Job
	err   error
	calls []listCall
}

func (m *mockLister) ListJobs(ctx context.Context, page, pageSize int) (*domain.JobPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, listCall{page, pageSize})
	if m.err != nil {
		return nil, m.err
	}

	total := len(m.jobs)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return &domain.JobPage{
		Items:      append([]domain.Job(nil), m.jobs[start:end]...),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (m *mockLister) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockLister) lastCall() listCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

// memStore is an in-memory domain.JobStore.
type memStore struct {
	mu       sync.Mutex
	saved    []domain.Job
	selected string
}

func (s *memStore) SaveJobs(ctx context.Context, jobs []domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, jobs...)
	return nil
}

func (s *memStore) RecentJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Job(nil), s.saved...), nil
}

func (s *memStore) SaveSelection(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = jobID
	return nil
}

func (s *memStore) Selection(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, nil
}

func (s *memStore) Close() error { return nil }

func authenticated() bool   { return true }
func unauthenticated() bool { return false }

func someJobs(n int) []domain.Job {
	jobs := make([]domain.Job, n)
	for i := range jobs {
		jobs[i] = domain.Job{ID: string(rune('a' + i)), Status: domain.StatusPending, CreatedAt: int64(100 - i)}
	}
	return jobs
}

func TestRegistry_LoadUnauthenticatedIsNoOp(t *testing.T) {
	lister := &mockLister{jobs: someJobs(3)}
	reg := New(lister, unauthenticated)

	if err := reg.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if lister.callCount() != 0 {
		t.Errorf("backend called %d times while unauthenticated, want 0", lister.callCount())
	}
}

func TestRegistry_LoadReplacesStateFromServer(t *testing.T) {
	lister := &mockLister{jobs: someJobs(7)}
	reg := New(lister, authenticated, WithPageSize(3))
	ctx := context.Background()

	if err := reg.Load(ctx, false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snap := reg.State()
	if len(snap.Jobs) != 3 {
		t.Errorf("len(Jobs) = %d, want 3", len(snap.Jobs))
	}
	if snap.Total != 7 || snap.TotalPages != 3 || snap.Page != 1 {
		t.Errorf("pagination = total %d pages %d page %d", snap.Total, snap.TotalPages, snap.Page)
	}
	if snap.Loading {
		t.Error("Loading = true after Load returned")
	}

	// Idempotent: a second load against an unchanged backend yields the
	// same content.
	if err := reg.Load(ctx, false); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	again := reg.State()
	if !reflect.DeepEqual(snap.Jobs, again.Jobs) {
		t.Errorf("second Load() changed jobs: %v vs %v", snap.Jobs, again.Jobs)
	}
}

func TestRegistry_AutoSelect(t *testing.T) {
	actionable := domain.Job{ID: "done", Status: domain.StatusCompleted,
		Result: domain.JobResult{"public_url": "u"}}

	t.Run("picks first actionable", func(t *testing.T) {
		lister := &mockLister{jobs: []domain.Job{
			{ID: "p", Status: domain.StatusPending},
			{ID: "bare", Status: domain.StatusCompleted}, // no result data
			actionable,
			{ID: "done2", Status: domain.StatusCompleted, Result: domain.JobResult{"public_url": "v"}},
		}}
		reg := New(lister, authenticated)

		if err := reg.Load(context.Background(), true); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		selected := reg.Selected()
		if selected == nil || selected.ID != "done" {
			t.Errorf("Selected() = %v, want the first actionable job", selected)
		}
	})

	t.Run("no actionable job leaves selection nil", func(t *testing.T) {
		lister := &mockLister{jobs: []domain.Job{
			{ID: "p", Status: domain.StatusPending},
			{ID: "f", Status: domain.StatusFailed},
		}}
		reg := New(lister, authenticated)

		if err := reg.Load(context.Background(), true); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if reg.Selected() != nil {
			t.Errorf("Selected() = %v, want nil", reg.Selected())
		}
	})

	t.Run("not applied unless requested", func(t *testing.T) {
		lister := &mockLister{jobs: []domain.Job{actionable}}
		reg := New(lister, authenticated)

		if err := reg.Load(context.Background(), false); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if reg.Selected() != nil {
			t.Errorf("Selected() = %v without autoSelect, want nil", reg.Selected())
		}
	})

	t.Run("existing selection untouched", func(t *testing.T) {
		lister := &mockLister{jobs: []domain.Job{actionable}}
		reg := New(lister, authenticated)
		current := domain.Job{ID: "mine", Status: domain.StatusCompleted,
			Result: domain.JobResult{"public_url": "w"}}
		reg.Select(&current)

		if err := reg.Load(context.Background(), true); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if selected := reg.Selected(); selected == nil || selected.ID != "mine" {
			t.Errorf("Selected() = %v, want existing selection kept", selected)
		}
	})
}

func TestRegistry_PageBoundaries(t *testing.T) {
	lister := &mockLister{jobs: someJobs(5)} // 3 pages of 2
	reg := New(lister, authenticated, WithPageSize(2))
	ctx := context.Background()

	if err := reg.Load(ctx, false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	t.Run("prev at first page is a no-op", func(t *testing.T) {
		calls := lister.callCount()
		if err := reg.PrevPage(ctx); err != nil {
			t.Fatalf("PrevPage() error = %v", err)
		}
		if reg.State().Page != 1 {
			t.Errorf("Page = %d, want 1", reg.State().Page)
		}
		if lister.callCount() != calls {
			t.Error("PrevPage() at the boundary issued a request")
		}
	})

	t.Run("next advances and fetches", func(t *testing.T) {
		if err := reg.NextPage(ctx); err != nil {
			t.Fatalf("NextPage() error = %v", err)
		}
		if reg.State().Page != 2 {
			t.Errorf("Page = %d, want 2", reg.State().Page)
		}
		if got := lister.lastCall(); got.page != 2 || got.pageSize != 2 {
			t.Errorf("last fetch = %+v, want page 2 size 2", got)
		}
	})

	t.Run("next at last page is a no-op", func(t *testing.T) {
		if err := reg.NextPage(ctx); err != nil { // page 3, the last
			t.Fatalf("NextPage() error = %v", err)
		}
		calls := lister.callCount()
		if err := reg.NextPage(ctx); err != nil {
			t.Fatalf("NextPage() error = %v", err)
		}
		if reg.State().Page != 3 {
			t.Errorf("Page = %d, want 3", reg.State().Page)
		}
		if lister.callCount() != calls {
			t.Error("NextPage() at the boundary issued a request")
		}
	})
}

func TestRegistry_GoToPageClamps(t *testing.T) {
	lister := &mockLister{jobs: someJobs(5)}
	reg := New(lister, authenticated, WithPageSize(2))
	ctx := context.Background()

	if err := reg.Load(ctx, false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := reg.GoToPage(ctx, 99); err != nil {
		t.Fatalf("GoToPage() error = %v", err)
	}
	if reg.State().Page != 3 {
		t.Errorf("Page = %d after GoToPage(99), want clamp to 3", reg.State().Page)
	}

	if err := reg.GoToPage(ctx, -1); err != nil {
		t.Fatalf("GoToPage() error = %v", err)
	}
	if reg.State().Page != 1 {
		t.Errorf("Page = %d after GoToPage(-1), want clamp to 1", reg.State().Page)
	}
}

func TestRegistry_SetPageSizeResetsPage(t *testing.T) {
	lister := &mockLister{jobs: someJobs(10)}
	reg := New(lister, authenticated, WithPageSize(2))
	ctx := context.Background()

	if err := reg.Load(ctx, false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := reg.NextPage(ctx); err != nil {
		t.Fatalf("NextPage() error = %v", err)
	}

	if err := reg.SetPageSize(ctx, 5); err != nil {
		t.Fatalf("SetPageSize() error = %v", err)
	}
	snap := reg.State()
	if snap.Page != 1 || snap.PageSize != 5 {
		t.Errorf("page/size = %d/%d, want 1/5", snap.Page, snap.PageSize)
	}
	if got := lister.lastCall(); got.page != 1 || got.pageSize != 5 {
		t.Errorf("last fetch = %+v, want page 1 size 5", got)
	}
}

func TestRegistry_ErrorRecovery(t *testing.T) {
	lister := &mockLister{jobs: someJobs(3)}
	reg := New(lister, authenticated)
	ctx := context.Background()

	if err := reg.Load(ctx, false); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	before := reg.State().Jobs

	lister.mu.Lock()
	lister.err = errors.New("backend unavailable")
	lister.mu.Unlock()

	if err := reg.Load(ctx, false); err == nil {
		t.Fatal("Load() error = nil, want failure")
	}

	snap := reg.State()
	if snap.Err != "backend unavailable" {
		t.Errorf("Err = %q, want the failure message", snap.Err)
	}
	if snap.Loading {
		t.Error("Loading stuck after a failed fetch")
	}
	if !reflect.DeepEqual(snap.Jobs, before) {
		t.Errorf("failed fetch cleared previous items: %v", snap.Jobs)
	}

	lister.mu.Lock()
	lister.err = nil
	lister.mu.Unlock()

	if err := reg.Load(ctx, false); err != nil {
		t.Fatalf("Load() after recovery error = %v", err)
	}
	if snap := reg.State(); snap.Err != "" {
		t.Errorf("Err = %q after recovery, want empty", snap.Err)
	}
}

func TestRegistry_StorePersistence(t *testing.T) {
	actionable := domain.Job{ID: "done", Status: domain.StatusCompleted,
		Result: domain.JobResult{"public_url": "u"}}
	lister := &mockLister{jobs: []domain.Job{actionable}}
	store := &memStore{}
	reg := New(lister, authenticated, WithStore(store))

	if err := reg.Load(context.Background(), true); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.saved) != 1 || store.saved[0].ID != "done" {
		t.Errorf("store.saved = %v, want the fetched page", store.saved)
	}
	if store.selected != "done" {
		t.Errorf("store.selected = %q, want done", store.selected)
	}
}
