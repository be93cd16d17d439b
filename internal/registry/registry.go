// Package registry maintains the paginated view over the user's job
// history, including the one-time auto-select heuristic and the
// page-boundary guards.
package registry

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/voxalab/voxa-go/internal/domain"
)

const (
	// DefaultPageSize is used until the caller changes it.
	DefaultPageSize = 10

	loadFallbackMessage = "failed to load jobs"
)

// Identity reports whether an authenticated identity is present. The
// registry never calls the backend unauthenticated.
type Identity func() bool

// Snapshot is the read state exposed to callers.
type Snapshot struct {
	Jobs       []domain.Job
	Selected   *domain.Job
	Loading    bool
	Err        string
	Page       int
	TotalPages int
	Total      int
	PageSize   int
}

// Registry is the paginated job collection. All methods are safe for
// concurrent use; a navigation call returns only after the fetch for the
// new page has completed.
type Registry struct {
	lister   domain.JobLister
	identity Identity
	store    domain.JobStore
	log      *zap.SugaredLogger

	mu         sync.Mutex
	jobs       []domain.Job
	selected   *domain.Job
	loading    bool
	err        string
	page       int
	totalPages int
	total      int
	pageSize   int
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore attaches a local cache; each successfully fetched page is
// persisted into it.
func WithStore(store domain.JobStore) Option {
	return func(r *Registry) { r.store = store }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Registry) { r.log = log }
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// New creates a Registry.
func New(lister domain.JobLister, identity Identity, opts ...Option) *Registry {
	r := &Registry{
		lister:   lister,
		identity: identity,
		log:      zap.NewNop().Sugar(),
		page:     1,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a copy of the read state.
func (r *Registry) State() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := Snapshot{
		Jobs:       append([]domain.Job(nil), r.jobs...),
		Loading:    r.loading,
		Err:        r.err,
		Page:       r.page,
		TotalPages: r.totalPages,
		Total:      r.total,
		PageSize:   r.pageSize,
	}
	if r.selected != nil {
		selected := *r.selected
		snap.Selected = &selected
	}
	return snap
}

// Selected returns the currently selected job, or nil.
func (r *Registry) Selected() *domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return nil
	}
	selected := *r.selected
	return &selected
}

// Select assigns the selection. Callers only pass jobs the server
// returned; the registry never fabricates one.
func (r *Registry) Select(job *domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setSelected(job)
}

// ClearSelection drops the selection.
func (r *Registry) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setSelected(nil)
}

func (r *Registry) setSelected(job *domain.Job) {
	r.selected = job
	if r.store == nil {
		return
	}
	id := ""
	if job != nil {
		id = job.ID
	}
	if err := r.store.SaveSelection(context.Background(), id); err != nil {
		r.log.Debugw("persisting selection failed", "error", err)
	}
}

// Load fetches the current page. It is a no-op without an authenticated
// identity. With autoSelect, and only when nothing is selected yet, the
// first completed job carrying result data becomes the selection.
func (r *Registry) Load(ctx context.Context, autoSelect bool) error {
	if !r.identity() {
		return nil
	}
	r.mu.Lock()
	page, pageSize := r.page, r.pageSize
	r.loading = true
	r.err = ""
	r.mu.Unlock()

	return r.fetch(ctx, page, pageSize, autoSelect)
}

// NextPage advances one page and re-fetches. No-op at the last page.
func (r *Registry) NextPage(ctx context.Context) error {
	r.mu.Lock()
	if r.page >= r.totalPages {
		r.mu.Unlock()
		return nil
	}
	r.page++
	page, pageSize := r.page, r.pageSize
	r.loading = true
	r.err = ""
	r.mu.Unlock()

	return r.fetch(ctx, page, pageSize, false)
}

// PrevPage goes back one page and re-fetches. No-op at the first page.
func (r *Registry) PrevPage(ctx context.Context) error {
	r.mu.Lock()
	if r.page <= 1 {
		r.mu.Unlock()
		return nil
	}
	r.page--
	page, pageSize := r.page, r.pageSize
	r.loading = true
	r.err = ""
	r.mu.Unlock()

	return r.fetch(ctx, page, pageSize, false)
}

// GoToPage jumps to page n, clamped to [1, max(1, totalPages)], and
// re-fetches.
func (r *Registry) GoToPage(ctx context.Context, n int) error {
	r.mu.Lock()
	limit := r.totalPages
	if limit < 1 {
		limit = 1
	}
	if n < 1 {
		n = 1
	}
	if n > limit {
		n = limit
	}
	r.page = n
	page, pageSize := r.page, r.pageSize
	r.loading = true
	r.err = ""
	r.mu.Unlock()

	return r.fetch(ctx, page, pageSize, false)
}

// SetPageSize changes the page size, resets to page 1 and re-fetches, so
// an out-of-range page is never requested implicitly.
func (r *Registry) SetPageSize(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	r.mu.Lock()
	r.pageSize = n
	r.page = 1
	page, pageSize := r.page, r.pageSize
	r.loading = true
	r.err = ""
	r.mu.Unlock()

	return r.fetch(ctx, page, pageSize, false)
}

func (r *Registry) fetch(ctx context.Context, page, pageSize int, autoSelect bool) error {
	jobPage, err := r.lister.ListJobs(ctx, page, pageSize)

	r.mu.Lock()
	defer r.mu.Unlock()
	// A failed fetch must never leave the loading flag stuck.
	defer func() { r.loading = false }()

	if err != nil {
		// Previous items survive a failed fetch.
		r.err = errorMessage(err)
		r.log.Debugw("job list fetch failed", "page", page, "error", err)
		return err
	}

	r.jobs = jobPage.Items
	r.total = jobPage.Total
	r.totalPages = jobPage.TotalPages
	if jobPage.Page > 0 {
		r.page = jobPage.Page
	}
	r.err = ""

	if autoSelect && r.selected == nil {
		if job, ok := lo.Find(jobPage.Items, func(j domain.Job) bool {
			return j.Actionable()
		}); ok {
			picked := job
			r.setSelected(&picked)
		}
	}

	if r.store != nil {
		if err := r.store.SaveJobs(ctx, jobPage.Items); err != nil {
			r.log.Debugw("caching jobs failed", "error", err)
		}
	}
	return nil
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return loadFallbackMessage
	}
	return err.Error()
}
