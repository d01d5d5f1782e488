// Package client is an HTTP client for the ragchat API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/papercomputeco/ragchat/api"
	"github.com/papercomputeco/ragchat/api/conversations"
	"github.com/papercomputeco/ragchat/pkg/llm"
)

// DefaultTimeout bounds a single request. Turns that call hosted models and
// web search can be slow.
const DefaultTimeout = 5 * time.Minute

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Node       string
	Source     string
}

func (e *APIError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("HTTP %d: %s (%s in %s)", e.StatusCode, e.Message, e.Source, e.Node)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	target     string
	httpClient *http.Client
}

func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}

	return &Client{
		target:     strings.TrimRight(target, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Chat runs one turn on threadID.
func (c *Client) Chat(ctx context.Context, threadID string, req api.ChatRequest) (*conversations.ChatOutput, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var out conversations.ChatOutput
	if err := c.do(ctx, http.MethodPost, threadPath(threadID, "chat"), "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resume finishes an interrupted turn on threadID.
func (c *Client) Resume(ctx context.Context, threadID string) (*conversations.ChatOutput, error) {
	var out conversations.ChatOutput
	if err := c.do(ctx, http.MethodPost, threadPath(threadID, "resume"), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListThreads(ctx context.Context) ([]string, error) {
	var out struct {
		Threads []string `json:"threads"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/conversations", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Threads, nil
}

func (c *Client) GetThread(ctx context.Context, threadID string) (*conversations.Thread, error) {
	var out conversations.Thread
	if err := c.do(ctx, http.MethodGet, threadPath(threadID, ""), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Checkpoints(ctx context.Context, threadID string) ([]conversations.CheckpointSummary, error) {
	var out struct {
		Checkpoints []conversations.CheckpointSummary `json:"checkpoints"`
	}
	if err := c.do(ctx, http.MethodGet, threadPath(threadID, "checkpoints"), "", nil, &out); err != nil {
		return nil, err
	}
	return out.Checkpoints, nil
}

// Upload sends the file at path as a multipart upload.
func (c *Client) Upload(ctx context.Context, path string) (*api.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	var out api.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/v1/files", mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListFiles(ctx context.Context) ([]string, error) {
	var out struct {
		Files []string `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/files", "", nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *Client) DeleteFile(ctx context.Context, name string) (*api.DeleteResponse, error) {
	var out api.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(name), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func threadPath(threadID, suffix string) string {
	p := "/v1/conversations/" + url.PathEscape(threadID)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.target+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to ragchat API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var e llm.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
			apiErr.Node = e.Node
			apiErr.Source = e.Source
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
