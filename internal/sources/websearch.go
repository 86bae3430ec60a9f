package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/slanglab/internal/tracker"
)

const (
	WebSearchName = "web_search"

	// Programmable search returns at most ten results per request.
	maxWebPageSize    = 10
	maxWebQueriesUsed = 3
)

type WebSearchOptions struct {
	APIKey            string
	EngineID          string
	Endpoint          string
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            zerolog.Logger
}

// WebSearch queries a programmable web search API with the first few
// expanded queries.
type WebSearch struct {
	apiKey   string
	engineID string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

func NewWebSearch(opts WebSearchOptions) *WebSearch {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &WebSearch{
		apiKey:   strings.TrimSpace(opts.APIKey),
		engineID: strings.TrimSpace(opts.EngineID),
		endpoint: strings.TrimSpace(opts.Endpoint),
		client:   opts.HTTPClient,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		logger:   opts.Logger.With().Str("source", WebSearchName).Logger(),
	}
}

func (s *WebSearch) Name() string {
	return WebSearchName
}

type webSearchResponse struct {
	Items []webSearchItem `json:"items"`
}

type webSearchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Pagemap struct {
		Metatags []map[string]string `json:"metatags"`
	} `json:"pagemap"`
}

func (s *WebSearch) Search(ctx context.Context, queries []string, domainAllowlist []string, maxResults int) []tracker.RawHit {
	if s.apiKey == "" || s.engineID == "" {
		s.logger.Warn().Msg("web search credentials missing; skipping source")
		return nil
	}
	if maxResults <= 0 || len(queries) == 0 {
		return nil
	}

	used := queries[:min(len(queries), maxWebQueriesUsed)]
	perQuery := min((maxResults+len(used)-1)/len(used), maxWebPageSize)
	domains := cleanDomains(domainAllowlist)

	hits := make([]tracker.RawHit, 0, maxResults)
	for _, query := range used {
		if len(hits) >= maxResults {
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("web search rate limit wait aborted")
			break
		}

		var resp webSearchResponse
		if err := getJSON(ctx, s.client, s.endpoint, s.params(query, domains, perQuery), nil, &resp); err != nil {
			s.logger.Warn().Err(err).Str("query", query).Msg("web search request failed")
			continue
		}

		for _, item := range resp.Items {
			link := strings.TrimSpace(item.Link)
			if link == "" {
				continue
			}
			hits = append(hits, tracker.RawHit{
				URL:         link,
				Title:       strings.TrimSpace(item.Title),
				Snippet:     strings.TrimSpace(item.Snippet),
				Source:      WebSearchName,
				PublishedAt: item.publishedAt(),
				MatchType:   tracker.MatchTypeWebSearch,
			})
			if len(hits) >= maxResults {
				break
			}
		}
	}

	return hits
}

// params restricts to a single allowlisted domain with siteSearch and to
// several with site: operators in the query.
func (s *WebSearch) params(query string, domains []string, num int) url.Values {
	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("cx", s.engineID)
	params.Set("num", strconv.Itoa(num))

	switch len(domains) {
	case 0:
	case 1:
		params.Set("siteSearch", domains[0])
		params.Set("siteSearchFilter", "i")
	default:
		sites := make([]string, 0, len(domains))
		for _, domain := range domains {
			sites = append(sites, "site:"+domain)
		}
		query += " (" + strings.Join(sites, " OR ") + ")"
	}
	params.Set("q", query)
	return params
}

func (i webSearchItem) publishedAt() *time.Time {
	for _, tags := range i.Pagemap.Metatags {
		if ts := parseTimestamp(tags["article:published_time"]); ts != nil {
			return ts
		}
	}
	return nil
}
