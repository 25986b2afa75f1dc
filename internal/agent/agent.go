// Package agent implements the pipeline's LLM collaborators: page
// discovery against the target site and per-page structured extraction.
package agent

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sells-group/extraction-service/internal/resilience"
	"github.com/sells-group/extraction-service/pkg/reader"
)

// Config tunes both agents.
type Config struct {
	// Model is the Anthropic model id used for discovery and extraction.
	Model string
	// MaxTokens caps each completion. Default 4096.
	MaxTokens int64
	// MaxPages caps how many discovered pages enter extraction. Default 10.
	MaxPages int
	// PageCharLimit truncates fetched page content before prompting.
	// Default 50000.
	PageCharLimit int
	// Retry applies to reader fetches and LLM calls alike.
	Retry resilience.Policy
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5-20250929"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.PageCharLimit <= 0 {
		c.PageCharLimit = 50000
	}
	return c
}

// fetchPage reads a URL through the reader proxy with retries. Reader
// 5xx and 429 responses are retried; everything else fails fast.
func fetchPage(ctx context.Context, rc reader.Client, p resilience.Policy, targetURL, operation string) (*reader.Page, error) {
	p.ShouldRetry = retryableFetch
	p.OnRetry = resilience.RetryLogger("reader", operation)
	return resilience.Do(ctx, p, func(ctx context.Context) (*reader.Page, error) {
		return rc.Fetch(ctx, targetURL)
	})
}

func retryableFetch(err error) bool {
	var se *reader.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.Code)
	}
	return resilience.IsTransient(err)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>\)\]]+`)

// extractURLs pulls http(s) URLs out of free-form LLM output, deduplicated
// in order of first appearance.
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		urls = append(urls, m)
	}
	return urls
}
