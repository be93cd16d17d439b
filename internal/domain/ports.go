package domain

import "context"

// StatusFetcher is the driven port for single-job status checks.
type StatusFetcher interface {
	GetJob(ctx context.Context, id string) (*Job, error)
}

// JobLister is the driven port for paginated job history.
type JobLister interface {
	ListJobs(ctx context.Context, page, pageSize int) (*JobPage, error)
}

// PollObserver receives poll-loop events, one method per event. Terminal
// methods fire at most once per polling session, and nothing fires after
// the session is stopped.
type PollObserver interface {
	OnProgress(progress int, message string)
	OnComplete(job *Job)
	OnFailed(message string)
	OnError(message string)
}

// JobStore is the driven port for the local job-history cache.
type JobStore interface {
	SaveJobs(ctx context.Context, jobs []Job) error
	RecentJobs(ctx context.Context, limit int) ([]Job, error)
	SaveSelection(ctx context.Context, jobID string) error
	Selection(ctx context.Context) (string, error)
	Close() error
}
