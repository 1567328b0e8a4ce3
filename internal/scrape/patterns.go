package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// SitePattern recognizes one storefront's product URLs and knows how to pull
// a stable product identifier out of them.
type SitePattern struct {
	SiteName    string
	hostPattern *regexp.Regexp
	idPattern   *regexp.Regexp
}

// PatternMatch is the result of recognizing a storefront URL.
type PatternMatch struct {
	SiteName  string
	ProductID string
	Query     string
}

// Matcher holds the storefront registry. The exact pattern list is
// replaceable configuration, not load-bearing logic; these defaults cover
// the storefronts seen most in practice.
type Matcher struct {
	patterns       []SitePattern
	preemptDomains []string
}

// NewMatcher builds a Matcher with the default registry. preemptDomains are
// storefronts known to block our direct fetches; URLs on those hosts skip
// the direct-fetch stage entirely. A nil slice uses the default.
func NewMatcher(preemptDomains []string) *Matcher {
	if preemptDomains == nil {
		preemptDomains = []string{"shopee."}
	}
	return &Matcher{
		patterns:       defaultPatterns(),
		preemptDomains: preemptDomains,
	}
}

func defaultPatterns() []SitePattern {
	return []SitePattern{
		{
			SiteName:    "momo",
			hostPattern: regexp.MustCompile(`(?i)momoshop\.com\.tw`),
			idPattern:   regexp.MustCompile(`i_code=(\d+)`),
		},
		{
			SiteName:    "PChome",
			hostPattern: regexp.MustCompile(`(?i)24h\.pchome\.com\.tw`),
			idPattern:   regexp.MustCompile(`/prod/([A-Z0-9]+-[A-Z0-9]+)`),
		},
		{
			SiteName:    "Shopee",
			hostPattern: regexp.MustCompile(`(?i)shopee\.`),
			idPattern:   regexp.MustCompile(`i\.(\d+)\.(\d+)`),
		},
		{
			SiteName:    "Amazon",
			hostPattern: regexp.MustCompile(`(?i)amazon\.`),
			idPattern:   regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`),
		},
		{
			SiteName:    "Rakuten",
			hostPattern: regexp.MustCompile(`(?i)rakuten\.co(?:m|\.jp)`),
			idPattern:   regexp.MustCompile(`/product/([0-9]+)`),
		},
	}
}

// Match recognizes a storefront URL and builds a natural-language search
// query embedding the site name and product id.
func (m *Matcher) Match(rawURL string) (*PatternMatch, bool) {
	for _, p := range m.patterns {
		if !p.hostPattern.MatchString(rawURL) {
			continue
		}
		groups := p.idPattern.FindStringSubmatch(rawURL)
		if groups == nil {
			continue
		}
		id := strings.Join(groups[1:], ".")
		return &PatternMatch{
			SiteName:  p.SiteName,
			ProductID: id,
			Query:     fmt.Sprintf("%s product %s", p.SiteName, id),
		}, true
	}
	return nil, false
}

// PreemptsDirectFetch reports whether the URL's host is known to block our
// network origin, in which case the pipeline routes straight to search.
func (m *Matcher) PreemptsDirectFetch(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range m.preemptDomains {
		if strings.Contains(host, strings.ToLower(domain)) {
			return true
		}
	}
	return false
}
