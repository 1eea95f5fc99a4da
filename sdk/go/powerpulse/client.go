package powerpulse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the PowerPulse REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// AnalysisSubmission represents the payload required to create a new analysis.
type AnalysisSubmission struct {
	ID        string         `json:"id,omitempty"`
	Week1Path string         `json:"week1_path"`
	Week2Path string         `json:"week2_path"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AnalysisResult holds the outcome of a completed analysis.
type AnalysisResult struct {
	Narrative    string `json:"narrative"`
	Report       string `json:"report"`
	Observations string `json:"observations"`
}

// Analysis contains the server-side view of a submitted analysis task.
type Analysis struct {
	ID         string          `json:"id"`
	Week1Path  string          `json:"week1_path"`
	Week2Path  string          `json:"week2_path"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Result     *AnalysisResult `json:"result,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// QueryResponse carries the answer to a natural-language question.
type QueryResponse struct {
	Result string `json:"result"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("powerpulse api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the PowerPulse API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetAccessToken stores the static bearer token used on subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

// AccessToken returns the currently stored token string.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// SubmitAnalysis creates a new analysis task.
func (c *Client) SubmitAnalysis(ctx context.Context, submission AnalysisSubmission) (Analysis, error) {
	var created Analysis
	if err := c.post(ctx, "/api/v1/analyses", submission, &created); err != nil {
		return Analysis{}, err
	}
	return created, nil
}

// GetAnalysis fetches analysis details by identifier.
func (c *Client) GetAnalysis(ctx context.Context, id string) (Analysis, error) {
	var detail Analysis
	if err := c.get(ctx, "/api/v1/analyses/"+url.PathEscape(id), &detail); err != nil {
		return Analysis{}, err
	}
	return detail, nil
}

// ListAnalyses returns the most recent analysis tasks.
func (c *Client) ListAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	endpoint := "/api/v1/analyses"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var results []Analysis
	if err := c.get(ctx, endpoint, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Ask routes a natural-language question through the server-side supervisor.
func (c *Client) Ask(ctx context.Context, query string) (string, error) {
	var resp QueryResponse
	payload := struct {
		Query string `json:"query"`
	}{Query: query}
	if err := c.post(ctx, "/api/v1/queries", payload, &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}

// WaitForAnalysis polls the analysis until it reaches a terminal status.
func (c *Client) WaitForAnalysis(ctx context.Context, id string, interval time.Duration) (Analysis, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		detail, err := c.GetAnalysis(ctx, id)
		if err != nil {
			return Analysis{}, err
		}
		if detail.Status == "succeeded" || detail.Status == "failed" {
			return detail, nil
		}
		select {
		case <-ctx.Done():
			return Analysis{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
