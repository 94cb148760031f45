// Package api provides the HTTP client for the Mealpix import service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Rejection categories returned by the import service. The service performs
// all authorization checks; the client only carries the category back to the
// caller.
const (
	CodeInvalidArgument   = "invalid-argument"
	CodeNotFound          = "not-found"
	CodePermissionDenied  = "permission-denied"
	CodeResourceExhausted = "resource-exhausted"
	CodeInternal          = "internal"
)

// Error is a categorized rejection from the import service.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("import service: %s: %s", e.Code, e.Message)
}

// Client talks to the Mealpix import service over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client for the given service base URL.
// If baseURL is empty, uses MEALPIX_SERVICE_URL or the localhost default.
// Token is attached as a bearer token when non-empty.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("MEALPIX_SERVICE_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8686"
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type startImportRequest struct {
	StorageLocation string `json:"storageLocation"`
}

type startImportResponse struct {
	JobID string `json:"jobId"`
}

// errorResponse mirrors the service's error envelope.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StartImport registers an uploaded photo as a new pipeline job and returns
// the freshly minted job id. Service rejections come back as *Error carrying
// the category code; transport problems come back as plain wrapped errors.
func (c *Client) StartImport(ctx context.Context, storageLocation string) (string, error) {
	reqBody, err := json.Marshal(startImportRequest{StorageLocation: storageLocation})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/imports", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseError(resp.StatusCode, body)
	}

	var startResp startImportResponse
	if err := json.Unmarshal(body, &startResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if startResp.JobID == "" {
		return "", fmt.Errorf("service returned no job id")
	}

	return startResp.JobID, nil
}

// parseError decodes the service error envelope into an *Error. Bodies that
// don't carry a known category collapse into CodeInternal so callers always
// see one of the five categories.
func parseError(statusCode int, body []byte) *Error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && knownCode(errResp.Error.Code) {
		return &Error{Code: errResp.Error.Code, Message: errResp.Error.Message}
	}

	return &Error{
		Code:    CodeInternal,
		Message: fmt.Sprintf("unexpected response (HTTP %d)", statusCode),
	}
}

func knownCode(code string) bool {
	switch code {
	case CodeInvalidArgument, CodeNotFound, CodePermissionDenied, CodeResourceExhausted, CodeInternal:
		return true
	}
	return false
}
