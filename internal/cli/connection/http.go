package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/moeckpt/internal/infra/buildinfo"
	"github.com/yndnr/moeckpt/internal/server/httpserver"
)

// Client talks to a running moeckpt-server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for server, a host:port or URL.
func NewClient(server string, timeout time.Duration) *Client {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the base URL of the client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from the server. Partial saves (207) are
// reported through APIError too, with Result set.
type APIError struct {
	Status  int
	Code    string
	Message string
	Result  *httpserver.SaveResult
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Save triggers a save cycle on the server. An empty component saves all.
func (c *Client) Save(ctx context.Context, component string) (*httpserver.SaveResult, error) {
	path := "/checkpoint"
	if component != "" {
		path += "/" + url.PathEscape(component)
	}
	var result httpserver.SaveResult
	if err := c.do(ctx, http.MethodPost, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Checkpoints returns the latest checkpoint of every component.
func (c *Client) Checkpoints(ctx context.Context) ([]httpserver.CheckpointInfo, error) {
	var infos []httpserver.CheckpointInfo
	if err := c.do(ctx, http.MethodGet, "/checkpoints", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (c *Client) do(ctx context.Context, method, path string, data any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "moeckpt/"+buildinfo.Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	envelope := httpserver.Response{Data: data}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		if resp.StatusCode/100 != 2 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
	if r, ok := data.(*httpserver.SaveResult); ok && len(r.Saved)+len(r.Failed) > 0 {
		apiErr.Result = r
	}
	return apiErr
}
