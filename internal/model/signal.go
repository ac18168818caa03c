package model

import (
	"strings"
	"time"
)

// SignalType identifies a class of cached enrichment signal.
type SignalType string

const (
	// SignalDomainAuthority covers rank, traffic, and keyword metrics for
	// a domain.
	SignalDomainAuthority SignalType = "domain_authority"
)

// DomainSignal holds third-party authority metrics for one domain.
type DomainSignal struct {
	Domain          string    `json:"domain"`
	Rank            int       `json:"rank"`
	MonthlyTraffic  int64     `json:"monthly_traffic"`
	IndexedKeywords int       `json:"indexed_keywords"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// Valid reports whether the signal carries usable values. A cached entry
// that fails this check is treated as a miss.
func (s *DomainSignal) Valid() bool {
	if s == nil || s.Domain == "" {
		return false
	}
	if s.Rank <= 0 {
		return false
	}
	return s.MonthlyTraffic >= 0 && s.IndexedKeywords >= 0
}

// NormalizeDomain canonicalizes a domain for signal cache keys: lowercase,
// no scheme, no leading www, no path or port.
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}
