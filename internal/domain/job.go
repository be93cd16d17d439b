package domain

// JobStatus represents the processing state of a job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Known returns true if the status is one of the four recognized values.
// Unrecognized statuses are treated as non-terminal.
func (s JobStatus) Known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal returns true if the status ends polling permanently.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobResult is the structured payload attached to a completed job. Its
// presence, not the status string alone, is the contract for "actionable".
type JobResult map[string]any

// PublicURL returns the public result URL, if the server provided one.
func (r JobResult) PublicURL() string {
	s, _ := r["public_url"].(string)
	return s
}

// Job is the client's snapshot of one server-side processing task. The
// client never mutates a Job; it only replaces its copy with the latest
// server snapshot.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at,omitempty"`
	Result    JobResult `json:"result_data,omitempty"`
}

// Terminal returns true once the job has completed or failed.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}

// Actionable returns true if the job completed and carries result data.
func (j *Job) Actionable() bool {
	return j.Status == StatusCompleted && j.Result != nil
}

// UpdatedOrCreated returns the sort timestamp, falling back to the
// creation time when the server omitted updated_at.
func (j *Job) UpdatedOrCreated() int64 {
	if j.UpdatedAt != 0 {
		return j.UpdatedAt
	}
	return j.CreatedAt
}

// JobPage is one page of the user's job history. The server is
// authoritative for all counts.
type JobPage struct {
	Items      []Job `json:"items"`
	Total      int   `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// UploadSession is a one-time upload target issued by the backend. A
// session is consumed by exactly one transfer attempt; an expired session
// is renegotiated, never retried.
type UploadSession struct {
	UploadID        string            `json:"upload_id"`
	ObjectName      string            `json:"object_name"`
	UploadURL       string            `json:"upload_url"`
	ExpiresAt       int64             `json:"expires_at"`
	RequiredHeaders map[string]string `json:"required_headers"`
}
