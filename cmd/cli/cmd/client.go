package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shortforge/pkg/api"
)

// ShortClient handles API calls to the shortforge server.
type ShortClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewShortClient creates a new client with the given base URL and token.
func NewShortClient(baseURL, token string) *ShortClient {
	return &ShortClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// isNotFound reports whether err is an API 404.
func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// newAPIError prefers the message of a JSON error body.
func newAPIError(status int, body []byte) *APIError {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// send performs the request and returns the response when its status is
// one of ok. The caller closes the body.
func (c *ShortClient) send(method, path string, payload any, ok ...int) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.Token != "" {
		httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	for _, status := range ok {
		if resp.StatusCode == status {
			return resp, nil
		}
	}

	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return nil, newAPIError(resp.StatusCode, respBody)
}

// call sends a JSON request and decodes the JSON response into out.
func (c *ShortClient) call(method, path string, payload, out any, ok ...int) error {
	resp, err := c.send(method, path, payload, ok...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Login sends POST /api/auth/login and returns the bearer token.
func (c *ShortClient) Login(password string) (string, error) {
	var result api.LoginResponse
	if err := c.call(http.MethodPost, "/api/auth/login", api.LoginRequest{Password: password}, &result, http.StatusOK); err != nil {
		return "", err
	}
	return result.Token, nil
}

// CreateJob sends POST /api/jobs.
func (c *ShortClient) CreateJob(req api.CreateJobRequest) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.call(http.MethodPost, "/api/jobs", req, &result, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob sends GET /api/jobs/{id}.
func (c *ShortClient) GetJob(id string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.call(http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListJobs sends GET /api/jobs.
func (c *ShortClient) ListJobs() ([]api.JobResponse, error) {
	var result []api.JobResponse
	if err := c.call(http.MethodGet, "/api/jobs", nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result, nil
}

// GetLogs sends GET /api/jobs/{id}/logs for entries after the given sequence number.
func (c *ShortClient) GetLogs(id string, after int) (*api.LogsResponse, error) {
	var result api.LogsResponse
	path := fmt.Sprintf("/api/jobs/%s/logs?after=%d", url.PathEscape(id), after)
	if err := c.call(http.MethodGet, path, nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteJob sends DELETE /api/jobs/{id}.
func (c *ShortClient) DeleteJob(id string) error {
	return c.call(http.MethodDelete, "/api/jobs/"+url.PathEscape(id), nil, nil, http.StatusNoContent, http.StatusOK)
}

// Download streams the finished video of a job into w.
func (c *ShortClient) Download(id string, w io.Writer) (int64, error) {
	resp, err := c.send(http.MethodGet, "/api/jobs/"+url.PathEscape(id)+"/download", nil, http.StatusOK)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read video: %w", err)
	}
	return n, nil
}
