// Package upload streams local photos into the import object store.
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Uploader writes photo bytes to durable remote storage over HTTP.
// Once Upload returns nil the object is readable at the destination path.
type Uploader struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an Uploader targeting the given object store base URL.
// The client carries no timeout: large photos on slow links are bounded by
// the caller's context instead.
func New(baseURL string) *Uploader {
	return &Uploader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
}

// NewObjectPath mints a destination path for a photo that has no job id yet.
// The path follows the store layout {namespace}/{ownerID}/{id}.jpg.
func NewObjectPath(namespace, ownerID string) string {
	return fmt.Sprintf("%s/%s/%s.jpg", namespace, ownerID, uuid.New().String())
}

// Upload streams the photo at localPath to objectPath. onProgress receives
// percentages in [0,100], non-decreasing, as bytes go out; it may be nil.
// Exactly one terminal outcome: nil once the object is durably stored, or an
// error.
func (u *Uploader) Upload(ctx context.Context, localPath, objectPath string, onProgress func(pct float64)) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat photo: %w", err)
	}

	body := &progressReader{
		r:          f,
		total:      info.Size(),
		onProgress: onProgress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.baseURL+"/"+objectPath, body)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload rejected: unexpected status %d", resp.StatusCode)
	}

	// Zero-byte files produce no reads, so make sure completion still lands
	// at 100.
	if onProgress != nil {
		onProgress(100)
	}

	u.logger.Debug("photo uploaded", "path", objectPath, "bytes", info.Size())
	return nil
}

// Delete removes an uploaded object. Used to clean up photos whose import
// never registered with the pipeline. A missing object is not an error.
func (u *Uploader) Delete(ctx context.Context, objectPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u.baseURL+"/"+objectPath, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("delete rejected: unexpected status %d", resp.StatusCode)
	}
}

// progressReader reports cumulative read progress as a percentage of total.
// Progress only moves forward, so re-reads after transport-level rewinds
// never report a lower percentage.
type progressReader struct {
	r          io.Reader
	total      int64
	sent       int64
	last       float64
	onProgress func(pct float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)

	if p.onProgress != nil && p.total > 0 && n > 0 {
		pct := float64(p.sent) / float64(p.total) * 100
		if pct > 100 {
			pct = 100
		}
		if pct > p.last {
			p.last = pct
			p.onProgress(pct)
		}
	}

	return n, err
}
