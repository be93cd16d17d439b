// Package upload performs the raw byte transfer against a pre-signed
// upload target. It is deliberately free of retry middleware: a session
// is consumed by one attempt, and callers renegotiate rather than retry.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ErrTransport marks a transfer that never completed at the network
// level, as opposed to a non-2xx response. Callers use the distinction
// to choose between retrying and renegotiating the session.
var ErrTransport = errors.New("upload error")

// StatusError is a completed transfer the storage endpoint rejected.
// The message carries the numeric code so callers can tell authorization
// failures (403) from size limits (413).
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload failed with status %d", e.Code)
}

// ProgressFunc reports bytes sent out of the total.
type ProgressFunc func(sent, total int64)

// Transferrer sends bytes to pre-signed targets.
type Transferrer struct {
	httpc *http.Client
	log   *zap.SugaredLogger
}

// Option configures a Transferrer.
type Option func(*Transferrer)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(t *Transferrer) { t.httpc = h }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(t *Transferrer) { t.log = log }
}

// New creates a Transferrer.
func New(opts ...Option) *Transferrer {
	t := &Transferrer{
		httpc: &http.Client{},
		log:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Put transfers the payload to the pre-signed URL. Required headers are
// attached verbatim and win over the content type argument. Progress is
// reported only when the total size is known; the absence of a callback
// is not an error.
func (t *Transferrer) Put(ctx context.Context, uploadURL string, r io.Reader, size int64, contentType string, requiredHeaders map[string]string, onProgress ProgressFunc) error {
	body := &progressReader{r: r, total: size, onProgress: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, value := range requiredHeaders {
		req.Header.Set(name, value)
	}

	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	t.log.Debugw("upload done", "status", resp.StatusCode, "sent", body.sent)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// ProgressReader wraps r so onProgress observes bytes as the transport
// drains them. A nil callback or unknown total disables reporting.
func ProgressReader(r io.Reader, total int64, onProgress ProgressFunc) io.Reader {
	return &progressReader{r: r, total: total, onProgress: onProgress}
}

// progressReader counts bytes as the transport drains them.
type progressReader struct {
	r          io.Reader
	total      int64
	sent       int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil && p.total > 0 {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}
