package tracker

import (
	"net/url"
	"strings"
)

// FilterBlocked drops hits whose host is a blocked domain or one of its
// subdomains. Hits with an unparsable URL are kept; the dedup stage decides
// what to do with them.
func FilterBlocked(hits []RawHit, blocklist []string) []RawHit {
	if len(blocklist) == 0 || len(hits) == 0 {
		return hits
	}

	kept := make([]RawHit, 0, len(hits))
	for _, hit := range hits {
		host := HostOf(hit.URL)
		if host != "" && matchesAnyDomain(host, blocklist) {
			continue
		}
		kept = append(kept, hit)
	}
	return kept
}

// HostOf returns the lowercased hostname of rawURL, or "" when it has none.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// DomainMatches reports whether host is domain or a subdomain of it.
func DomainMatches(host, domain string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	domain = strings.TrimSuffix(domain, ".")
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func matchesAnyDomain(host string, domains []string) bool {
	for _, domain := range domains {
		if DomainMatches(host, domain) {
			return true
		}
	}
	return false
}
