package tools

import (
	"testing"

	"github.com/ppiankov/bsdetector/internal/model"
)

func TestAuthorityClassifier_Classify(t *testing.T) {
	classifier := NewAuthorityClassifier(model.AuthorityConfig{
		PrimaryDomains:   []string{"sec.gov", "doi.org", "WWW.Arxiv.org"},
		SecondaryDomains: []string{"wikipedia.org", "reuters.com"},
		DomainMap: map[string]string{
			"blog.reuters.com": "tertiary",
			"acme.example":     "2",
		},
	})

	tests := []struct {
		url      string
		expected Authority
		desc     string
	}{
		{"https://www.sec.gov/cgi-bin/browse-edgar", AuthorityPrimary, "primary with www"},
		{"https://doi.org/10.1000/182", AuthorityPrimary, "primary exact"},
		{"https://arxiv.org/abs/2401.00001", AuthorityPrimary, "configured with www and mixed case"},
		{"https://en.wikipedia.org/wiki/Acme", AuthoritySecondary, "secondary subdomain"},
		{"https://www.reuters.com/technology/", AuthoritySecondary, "secondary with www"},
		{"https://blog.reuters.com/post", AuthorityTertiary, "override beats parent domain"},
		{"https://acme.example/press", AuthoritySecondary, "numeric override"},
		{"https://nasa.gov:443/mission", AuthorityPrimary, "official suffix with port"},
		{"https://www.ox.ac.uk/research", AuthorityPrimary, "academic suffix"},
		{"https://medium.com/@founder/we-changed-everything", AuthorityTertiary, "unknown domain"},
		{"https://gov.example.com/", AuthorityTertiary, "gov label is not a suffix"},
		{"not a url", AuthorityTertiary, "unparseable"},
		{"", AuthorityTertiary, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestAuthorityClassifier_Defaults(t *testing.T) {
	classifier := NewAuthorityClassifier(model.DefaultConfig().Search.Authority)

	if got := classifier.Classify("https://en.wikipedia.org/wiki/Hype"); got != AuthoritySecondary {
		t.Errorf("Expected secondary for wikipedia, got %v", got)
	}
	if got := classifier.Classify("https://www.sec.gov/edgar"); got != AuthorityPrimary {
		t.Errorf("Expected primary for sec.gov, got %v", got)
	}
}

func TestParseAuthority(t *testing.T) {
	tests := []struct {
		input    string
		expected Authority
	}{
		{"primary", AuthorityPrimary},
		{"PRIMARY", AuthorityPrimary},
		{"1", AuthorityPrimary},
		{"secondary", AuthoritySecondary},
		{"2", AuthoritySecondary},
		{"tertiary", AuthorityTertiary},
		{"3", AuthorityTertiary},
		{"unknown", AuthorityTertiary},
		{"", AuthorityTertiary},
	}

	for _, tt := range tests {
		if result := parseAuthority(tt.input); result != tt.expected {
			t.Errorf("Expected %v for %q, got %v", tt.expected, tt.input, result)
		}
	}
}
