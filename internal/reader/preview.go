// Package reader renders readable previews of sighting pages.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024
	DefaultMaxChars      = 4000

	PreviewSourcePage    = "page"
	PreviewSourceSnippet = "snippet"

	defaultUserAgent = "SlangLab-Preview/1.0"
)

type Options struct {
	Timeout       time.Duration
	BodyByteLimit int64
	MaxChars      int
	UserAgent     string
	HTTPClient    *http.Client
}

// Preview is the readable text of a sighting. Source says whether it came
// from the page itself or from the stored snippet.
type Preview struct {
	URL        string `json:"url"`
	Text       string `json:"text"`
	Truncated  bool   `json:"truncated"`
	Source     string `json:"source"`
	FetchError string `json:"fetch_error,omitempty"`
}

// FetchPreview extracts readable text from link. When the page cannot be
// fetched or yields nothing, the snippet stands in and the failure is
// reported in FetchError; an error is returned only when neither is usable.
func FetchPreview(ctx context.Context, link, snippet string, opts Options) (Preview, error) {
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	preview := Preview{URL: strings.TrimSpace(link)}
	text, fetchErr := fetchText(ctx, preview.URL, opts)
	if fetchErr == nil {
		preview.Text, preview.Truncated = TruncateText(text, maxChars)
		preview.Source = PreviewSourcePage
		return preview, nil
	}

	fallback := CleanText(snippet)
	if fallback == "" {
		return Preview{}, fetchErr
	}
	preview.Text, preview.Truncated = TruncateText(fallback, maxChars)
	preview.Source = PreviewSourceSnippet
	preview.FetchError = fetchErr.Error()
	return preview, nil
}

func fetchText(ctx context.Context, link string, opts Options) (string, error) {
	if link == "" {
		return "", fmt.Errorf("sighting link is required")
	}
	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", pageURL.Scheme)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "text/plain") {
		if text := CleanText(string(body)); text != "" {
			return text, nil
		}
		return "", fmt.Errorf("page is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(rendered.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	if text == "" {
		return "", fmt.Errorf("reader extracted empty content")
	}
	return text, nil
}

// CleanText normalizes line endings and collapses in-line whitespace, keeping
// paragraph breaks.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(line), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.Join(paragraphs, "\n\n")
}

// TruncateText clips text to maxChars runes, the last being an ellipsis.
func TruncateText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars == 1 {
		return "…", true
	}

	clipped := strings.TrimSpace(string(runes[:maxChars-1]))
	if clipped == "" {
		return "…", true
	}
	return clipped + "…", true
}
