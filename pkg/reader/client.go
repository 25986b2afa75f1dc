// Package reader provides a client for a reader-proxy service that
// fetches arbitrary web pages and returns their content as markdown.
package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the reader-proxy operations.
type Client interface {
	// Fetch retrieves a URL through the reader proxy and returns the
	// page rendered as markdown.
	Fetch(ctx context.Context, targetURL string) (*Page, error)
}

// Page is the rendered content of one fetched URL.
type Page struct {
	Title   string
	URL     string
	Content string
	Tokens  int
}

// StatusError reports a non-200 reader-proxy response. Callers decide
// retry policy from the status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reader: unexpected status %d: %s", e.Code, e.Body)
}

// envelope is the reader-proxy JSON response shape.
type envelope struct {
	Code int `json:"code"`
	Data struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Usage   struct {
			Tokens int `json:"tokens"`
		} `json:"usage"`
	} `json:"data"`
}

// Option configures the reader client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second. Parallel extraction
// workers share one client, so the cap applies across the whole batch.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a reader-proxy client. apiKey may be empty for
// unauthenticated proxies.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://r.jina.ai",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reader: rate limit wait")
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, targetURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "reader: create request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", "markdown")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "reader: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "reader: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "reader: unmarshal response")
	}
	return &Page{
		Title:   env.Data.Title,
		URL:     env.Data.URL,
		Content: env.Data.Content,
		Tokens:  env.Data.Usage.Tokens,
	}, nil
}
