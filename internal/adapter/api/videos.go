package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/voxalab/voxa-go/internal/adapter/upload"
	"github.com/voxalab/voxa-go/internal/domain"
)

// Default processing options, sent whenever the caller leaves a field
// unset.
const (
	DefaultTranscribeModel    = "standard"
	DefaultTranscribeProvider = "groq"
	DefaultVideoQuality       = "balanced"
	DefaultSubtitlePosition   = 16
	DefaultMaxSubtitleLines   = 2
	DefaultSubtitleSize       = 100
)

// ProcessOptions configures a processing request. Zero-value fields fall
// back to the service defaults; KaraokeEnabled is a pointer so "unset"
// (defaults to true) is distinguishable from false.
type ProcessOptions struct {
	TranscribeModel    string
	TranscribeProvider string
	VideoQuality       string
	SubtitlePosition   int
	MaxSubtitleLines   int
	SubtitleSize       int
	KaraokeEnabled     *bool
}

func (o ProcessOptions) withDefaults() ProcessOptions {
	if o.TranscribeModel == "" {
		o.TranscribeModel = DefaultTranscribeModel
	}
	if o.TranscribeProvider == "" {
		o.TranscribeProvider = DefaultTranscribeProvider
	}
	if o.VideoQuality == "" {
		o.VideoQuality = DefaultVideoQuality
	}
	if o.SubtitlePosition == 0 {
		o.SubtitlePosition = DefaultSubtitlePosition
	}
	if o.MaxSubtitleLines == 0 {
		o.MaxSubtitleLines = DefaultMaxSubtitleLines
	}
	if o.SubtitleSize == 0 {
		o.SubtitleSize = DefaultSubtitleSize
	}
	if o.KaraokeEnabled == nil {
		karaoke := true
		o.KaraokeEnabled = &karaoke
	}
	return o
}

func (o ProcessOptions) formFields() map[string]string {
	o = o.withDefaults()
	return map[string]string{
		"transcribe_model":    o.TranscribeModel,
		"transcribe_provider": o.TranscribeProvider,
		"video_quality":       o.VideoQuality,
		"subtitle_position":   strconv.Itoa(o.SubtitlePosition),
		"max_subtitle_lines":  strconv.Itoa(o.MaxSubtitleLines),
		"subtitle_size":       strconv.Itoa(o.SubtitleSize),
		"karaoke_enabled":     strconv.FormatBool(*o.KaraokeEnabled),
	}
}

// processRequest is the JSON body for the pre-signed processing start.
// The full option set is sent explicitly, never omitted.
type processRequest struct {
	UploadID           string `json:"upload_id"`
	TranscribeModel    string `json:"transcribe_model"`
	TranscribeProvider string `json:"transcribe_provider"`
	VideoQuality       string `json:"video_quality"`
	SubtitlePosition   int    `json:"subtitle_position"`
	MaxSubtitleLines   int    `json:"max_subtitle_lines"`
	SubtitleSize       int    `json:"subtitle_size"`
	KaraokeEnabled     bool   `json:"karaoke_enabled"`
}

// ProcessVideo submits a file directly as one multipart request. The
// server returns the created Job immediately. Progress covers the
// assembled multipart body, not just the file bytes.
func (c *Client) ProcessVideo(ctx context.Context, filename string, r io.Reader, opts ProcessOptions, onProgress upload.ProgressFunc) (*domain.Job, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating multipart file field: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("writing multipart file: %w", err)
	}
	for field, value := range opts.formFields() {
		if err := mw.WriteField(field, value); err != nil {
			return nil, fmt.Errorf("writing multipart field %s: %w", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	body := upload.ProgressReader(&buf, int64(buf.Len()), onProgress)
	var job domain.Job
	if err := c.doBody(ctx, http.MethodPost, "/videos/process", body, mw.FormDataContentType(), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateUploadSession negotiates a one-time pre-signed upload target.
func (c *Client) CreateUploadSession(ctx context.Context, filename, contentType string, size int64) (*domain.UploadSession, error) {
	in := map[string]any{
		"filename":     filename,
		"content_type": contentType,
		"size_bytes":   size,
	}
	var session domain.UploadSession
	if err := c.doJSON(ctx, http.MethodPost, "/videos/gcs/upload-url", in, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ProcessUploaded starts processing a previously transferred upload.
func (c *Client) ProcessUploaded(ctx context.Context, uploadID string, opts ProcessOptions) (*domain.Job, error) {
	o := opts.withDefaults()
	in := processRequest{
		UploadID:           uploadID,
		TranscribeModel:    o.TranscribeModel,
		TranscribeProvider: o.TranscribeProvider,
		VideoQuality:       o.VideoQuality,
		SubtitlePosition:   o.SubtitlePosition,
		MaxSubtitleLines:   o.MaxSubtitleLines,
		SubtitleSize:       o.SubtitleSize,
		KaraokeEnabled:     *o.KaraokeEnabled,
	}
	var job domain.Job
	if err := c.doJSON(ctx, http.MethodPost, "/videos/gcs/process", in, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches a single job snapshot. This is the poll target.
func (c *Client) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := c.doJSON(ctx, http.MethodGet, "/videos/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs fetches one page of job history.
func (c *Client) ListJobs(ctx context.Context, page, pageSize int) (*domain.JobPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	var jobPage domain.JobPage
	if err := c.doJSON(ctx, http.MethodGet, "/videos/jobs?"+query.Encode(), nil, &jobPage); err != nil {
		return nil, err
	}
	return &jobPage, nil
}

// DeleteJob removes a job. Callers refresh the registry afterwards.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/videos/jobs/"+url.PathEscape(id), nil, nil)
}
