package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client is the authenticated HTTP client for the platform's REST surface.
// API requests go to the API base URL, blob requests to the content base URL;
// every request carries the bearer token and a fresh X-Request-ID.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	contentBaseURL string
}

// NewClient creates a new API client
func NewClient(baseURL, contentBaseURL, token string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &authTransport{token: token, next: http.DefaultTransport},
		},
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		contentBaseURL: strings.TrimSuffix(contentBaseURL, "/"),
	}
}

// authTransport injects bearer auth and a request ID into every request
type authTransport struct {
	token string
	next  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	if t.token != "" {
		req2.Header.Set("Authorization", "Bearer "+t.token)
	}
	req2.Header.Set("X-Request-ID", uuid.New().String())
	return t.next.RoundTrip(req2)
}

// getJSON issues GET base+endpoint and decodes a 2xx JSON body into out
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

// postJSON issues POST base+endpoint with a JSON body and decodes the response into out (may be nil)
func (c *Client) postJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().
			Str("path", req.URL.Path).
			Int("status", resp.StatusCode).
			Msg("API request failed")
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetBlob fetches raw text from the content store. Absolute locators are
// fetched as-is; relative locators are joined to the content base URL.
func (c *Client) GetBlob(ctx context.Context, locator string) (string, error) {
	blobURL := locator
	if u, err := url.Parse(locator); err != nil || !u.IsAbs() {
		blobURL = c.contentBaseURL + "/" + strings.TrimPrefix(path.Clean("/"+locator), "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, blobURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build blob request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errorFromResponse(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read blob body: %w", err)
	}
	return string(data), nil
}
