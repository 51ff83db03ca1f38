// Package anthropic uploads rendered documents to the Anthropic Files
// API and reports typed results. One attempt per call; retrying is the
// caller's decision.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"calexport/internal/domain"
)

const (
	BaseURL = "https://api.anthropic.com/v1"

	apiVersion  = "2023-06-01"
	betaFeature = "files-api-2025-04-14"
)

// Client is an Anthropic Files API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	tempDir    string
}

// NewClient creates a new Files API client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: BaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		tempDir: os.TempDir(),
	}
}

// IsConfigured returns true if the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// SetBaseURL overrides the API endpoint.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// SetTempDir overrides where documents are spooled before upload.
func (c *Client) SetTempDir(dir string) {
	c.tempDir = dir
}

// UploadDocument spools the document to a temporary file, uploads it as
// a multipart file and returns the remote file id. The temporary file is
// removed on every exit path, success or failure.
func (c *Client) UploadDocument(ctx context.Context, doc domain.RenderedDocument) (string, error) {
	name := fmt.Sprintf("calendar-*.%s", doc.Format.Extension())
	tmp, err := os.CreateTemp(c.tempDir, name)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(doc.Content); err != nil {
		tmp.Close()
		return "", &UploadError{Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return "", &UploadError{Err: fmt.Errorf("close temp file: %w", err)}
	}

	return c.uploadFile(ctx, tmpPath, doc.Format.ContentType())
}

func (c *Client) uploadFile(ctx context.Context, path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("read temp file: %w", err)}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("create multipart: %w", err)}
	}
	if _, err := part.Write(data); err != nil {
		return "", &UploadError{Err: fmt.Errorf("write multipart: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return "", &UploadError{Err: fmt.Errorf("close multipart: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &body)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("create request: %w", err)}
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UploadError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var file fileObject
	if err := json.Unmarshal(respBody, &file); err != nil {
		return "", &UploadError{Status: resp.StatusCode, Body: string(respBody),
			Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if file.ID == "" {
		return "", &UploadError{Status: resp.StatusCode, Body: string(respBody),
			Err: fmt.Errorf("response has no file id")}
	}

	return file.ID, nil
}

// TestCredentials checks that the API key works by listing files. Any
// failure collapses to false.
func (c *Client) TestCredentials(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("anthropic-beta", betaFeature)
}
