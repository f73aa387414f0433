package tools

import (
	"net"
	"net/url"
	"strings"

	"github.com/ppiankov/bsdetector/internal/model"
)

// Authority is a coarse ranking of how much weight a source carries
type Authority string

const (
	AuthorityPrimary   Authority = "primary"   // Filings, papers, statutes, official records
	AuthoritySecondary Authority = "secondary" // Encyclopedias, wire services, major publishers
	AuthorityTertiary  Authority = "tertiary"  // Blogs, vendor pages, everything else
)

// Public-sector and academic suffixes count as primary without configuration
var officialSuffixes = []string{".gov", ".mil", ".edu", ".gov.uk", ".ac.uk", ".gov.au", ".edu.au"}

// AuthorityClassifier assigns search results an authority tier by domain
type AuthorityClassifier struct {
	primary   map[string]bool
	secondary map[string]bool
	overrides map[string]Authority
}

// NewAuthorityClassifier builds a classifier from cfg
func NewAuthorityClassifier(cfg model.AuthorityConfig) *AuthorityClassifier {
	c := &AuthorityClassifier{
		primary:   make(map[string]bool, len(cfg.PrimaryDomains)),
		secondary: make(map[string]bool, len(cfg.SecondaryDomains)),
		overrides: make(map[string]Authority, len(cfg.DomainMap)),
	}
	for _, d := range cfg.PrimaryDomains {
		c.primary[normalizeDomain(d)] = true
	}
	for _, d := range cfg.SecondaryDomains {
		c.secondary[normalizeDomain(d)] = true
	}
	for d, tier := range cfg.DomainMap {
		c.overrides[normalizeDomain(d)] = parseAuthority(tier)
	}
	return c
}

// Classify returns the tier for rawURL. Unparseable URLs are tertiary.
func (c *AuthorityClassifier) Classify(rawURL string) Authority {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return AuthorityTertiary
	}
	host := normalizeDomain(u.Host)

	// Walk from the full host up through its parents so the most specific
	// entry wins: news.example.com before example.com
	for d := host; d != ""; d = parentDomain(d) {
		if tier, ok := c.overrides[d]; ok {
			return tier
		}
		if c.primary[d] {
			return AuthorityPrimary
		}
		if c.secondary[d] {
			return AuthoritySecondary
		}
	}

	for _, suffix := range officialSuffixes {
		if strings.HasSuffix(host, suffix) {
			return AuthorityPrimary
		}
	}
	return AuthorityTertiary
}

func normalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

func parentDomain(host string) string {
	i := strings.IndexByte(host, '.')
	if i < 0 {
		return ""
	}
	return host[i+1:]
}

func parseAuthority(s string) Authority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary", "1":
		return AuthorityPrimary
	case "secondary", "2":
		return AuthoritySecondary
	default:
		return AuthorityTertiary
	}
}
