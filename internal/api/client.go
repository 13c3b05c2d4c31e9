package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/racmlabs/racm-int/internal/config"
	"github.com/racmlabs/racm-int/internal/http"
	"github.com/racmlabs/racm-int/internal/models"
)

// Client talks to the RACM analysis service.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	token      string
}

// NewClient creates a new API client from the resolved configuration.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.APIBaseURL == "" {
		return nil, errors.New("API base URL is empty")
	}

	baseClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	// retryablehttp is the transport, but with retries off: the only retry
	// paths in this client are poll continuation and explicit user re-runs.
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = baseClient
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		token:      cfg.APIToken,
	}, nil
}

// doRequest performs an HTTP request with authentication.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

// doJSON issues a request with an optional JSON body and decodes a JSON
// response into out (when out is non-nil). Non-2xx responses are classified.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var reqBody io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request body: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.doRequest(ctx, op, method, path, reqBody, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return classifyStatus(op, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
	}
	return nil
}

// SubmitJob uploads a document (plus optional free-text instructions) and
// returns the server-assigned job ID. No job exists on failure.
func (c *Client) SubmitJob(ctx context.Context, filePath, prompt string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("submit job: failed to open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("submit job: failed to build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("submit job: failed to read file: %w", err)
	}
	if prompt != "" {
		if err := mw.WriteField("prompt", prompt); err != nil {
			return "", fmt.Errorf("submit job: failed to build form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("submit job: failed to build form: %w", err)
	}

	resp, err := c.doRequest(ctx, "submit job", "POST", "/api/jobs", &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return "", classifyStatus("submit job", resp.StatusCode, data)
	}

	var submitted models.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return "", fmt.Errorf("submit job: failed to decode response: %w", err)
	}
	if submitted.JobID == "" {
		return "", fmt.Errorf("submit job: %w: response carried no job_id", ErrServer)
	}
	return submitted.JobID, nil
}

// GetJobStatus retrieves the current status snapshot for a job.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	var status models.JobStatus
	path := fmt.Sprintf("/api/jobs/%s/status", jobID)
	if err := c.doJSON(ctx, "get job status", "GET", path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetJobResult retrieves the result set for a completed job.
func (c *Client) GetJobResult(ctx context.Context, jobID string) (*models.ResultSet, error) {
	path := fmt.Sprintf("/api/jobs/%s/result", jobID)

	resp, err := c.doRequest(ctx, "get job result", "GET", path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get job result: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus("get job result", resp.StatusCode, data)
	}

	result, err := models.DecodeResult(data)
	if err != nil {
		return nil, fmt.Errorf("get job result: failed to decode response: %w", err)
	}
	return result, nil
}

// UpdateJobResult replaces both entry sequences server-side in one call.
func (c *Client) UpdateJobResult(ctx context.Context, jobID string, update *models.UpdateRequest) error {
	path := fmt.Sprintf("/api/jobs/%s/result", jobID)
	return c.doJSON(ctx, "update job result", "PUT", path, update, nil)
}

// DeleteJob removes a job server-side. The same endpoint serves both
// cancel-while-running and delete-after-completion.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	path := fmt.Sprintf("/api/jobs/%s", jobID)
	return c.doJSON(ctx, "delete job", "DELETE", path, nil, nil)
}

// Health probes the service's liveness endpoint, independent of job state.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, "health check", "GET", "/health", nil, nil)
}
