package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/slanglab/internal/tracker"
)

const (
	NewsAPIName = "news_api"

	maxNewsPageSize = 100
)

type NewsAPIOptions struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewsAPI searches a news article index for the raw term, newest first.
type NewsAPI struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

func NewNewsAPI(opts NewsAPIOptions) *NewsAPI {
	return &NewsAPI{
		apiKey:   strings.TrimSpace(opts.APIKey),
		endpoint: strings.TrimSpace(opts.Endpoint),
		client:   opts.HTTPClient,
		logger:   opts.Logger.With().Str("source", NewsAPIName).Logger(),
	}
}

func (s *NewsAPI) Name() string {
	return NewsAPIName
}

type newsResponse struct {
	Status   string        `json:"status"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Articles []newsArticle `json:"articles"`
}

type newsArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// Search uses only the first query, unquoted, since the index does its own
// phrase matching.
func (s *NewsAPI) Search(ctx context.Context, queries []string, domainAllowlist []string, maxResults int) []tracker.RawHit {
	if s.apiKey == "" {
		s.logger.Warn().Msg("news api key missing; skipping source")
		return nil
	}
	if maxResults <= 0 || len(queries) == 0 {
		return nil
	}

	term := tracker.Unquote(queries[0])
	if term == "" {
		return nil
	}

	params := url.Values{}
	params.Set("q", term)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(min(maxResults, maxNewsPageSize)))
	if domains := cleanDomains(domainAllowlist); len(domains) > 0 {
		params.Set("domains", strings.Join(domains, ","))
	}
	header := http.Header{}
	header.Set("X-Api-Key", s.apiKey)

	var resp newsResponse
	if err := getJSON(ctx, s.client, s.endpoint, params, header, &resp); err != nil {
		s.logger.Warn().Err(err).Str("query", term).Msg("news search request failed")
		return nil
	}
	if strings.EqualFold(resp.Status, "error") {
		s.logger.Warn().
			Str("code", resp.Code).
			Str("message", resp.Message).
			Str("query", term).
			Msg("news search returned an error")
		return nil
	}

	hits := make([]tracker.RawHit, 0, min(len(resp.Articles), maxResults))
	for _, article := range resp.Articles {
		link := strings.TrimSpace(article.URL)
		if link == "" {
			continue
		}
		hits = append(hits, tracker.RawHit{
			URL:         link,
			Title:       strings.TrimSpace(article.Title),
			Snippet:     strings.TrimSpace(article.Description),
			Source:      NewsAPIName,
			PublishedAt: parseTimestamp(article.PublishedAt),
			MatchType:   tracker.MatchTypeNewsSearch,
		})
		if len(hits) >= maxResults {
			break
		}
	}
	return hits
}
