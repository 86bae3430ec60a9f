// Package sources implements the external content providers a tracker run
// queries. Each adapter swallows its own failures and reports them as zero
// hits.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/slanglab/internal/config"
	"horse.fit/slanglab/internal/tracker"
)

const (
	DefaultBodyByteLimit = 1 << 20
	defaultHTTPTimeout   = 20 * time.Second
	errorBodyPreview     = 256

	defaultUserAgent = "SlangLab-Tracker/1.0"
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider status %d: %s", e.StatusCode, e.Body)
}

// FromConfig builds every source adapter known to the tracker.
func FromConfig(cfg *config.Config, logger zerolog.Logger) []tracker.Source {
	client := &http.Client{Timeout: defaultHTTPTimeout}
	return []tracker.Source{
		NewWebSearch(WebSearchOptions{
			APIKey:            cfg.SearchAPIKey,
			EngineID:          cfg.SearchEngineID,
			Endpoint:          cfg.SearchAPIEndpoint,
			RequestsPerSecond: cfg.SearchRequestsPerSecond,
			HTTPClient:        client,
			Logger:            logger,
		}),
		NewNewsAPI(NewsAPIOptions{
			APIKey:     cfg.NewsAPIKey,
			Endpoint:   cfg.NewsAPIEndpoint,
			HTTPClient: client,
			Logger:     logger,
		}),
	}
}

func getJSON(
	ctx context.Context,
	client *http.Client,
	endpoint string,
	params url.Values,
	header http.Header,
	out any,
) error {
	target, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	query := target.Query()
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, DefaultBodyByteLimit))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := strings.TrimSpace(string(body))
		if len(preview) > errorBodyPreview {
			preview = preview[:errorBodyPreview]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: preview}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}

func cleanDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			out = append(out, domain)
		}
	}
	return out
}
