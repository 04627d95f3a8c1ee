package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/markdave123-py/ragcrawl/internal/models"
)

// policy decides which URLs a session may fetch and which it may store.
type policy struct {
	domains  []string
	include  []*regexp.Regexp
	exclude  []*regexp.Regexp
	linkOnly []*regexp.Regexp
}

// newPolicy compiles the config's pattern lists. With no allowed domains the
// hosts of the seeds and sitemaps are used.
func newPolicy(cfg *models.ScraperConfig) (*policy, error) {
	p := &policy{}
	var err error
	if p.include, err = compilePatterns(cfg.IncludePatterns); err != nil {
		return nil, fmt.Errorf("include pattern: %w", err)
	}
	if p.exclude, err = compilePatterns(cfg.ExcludePatterns); err != nil {
		return nil, fmt.Errorf("exclude pattern: %w", err)
	}
	if p.linkOnly, err = compilePatterns(cfg.LinkOnlyPatterns); err != nil {
		return nil, fmt.Errorf("link-only pattern: %w", err)
	}

	for _, d := range cfg.AllowedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			p.domains = append(p.domains, strings.TrimPrefix(d, "*."))
		}
	}
	if len(p.domains) == 0 {
		seen := map[string]bool{}
		for _, raw := range append(append([]string{}, cfg.SeedURLs...), cfg.SitemapURLs...) {
			u, err := url.Parse(raw)
			if err != nil || u.Hostname() == "" {
				continue
			}
			h := strings.ToLower(u.Hostname())
			if !seen[h] {
				seen[h] = true
				p.domains = append(p.domains, h)
			}
		}
	}
	return p, nil
}

// Allows is domain allowlist AND include AND NOT exclude.
func (p *policy) Allows(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !p.domainAllowed(strings.ToLower(u.Hostname())) {
		return false
	}
	s := u.String()
	if len(p.include) > 0 && !matchAny(p.include, s) {
		return false
	}
	return !matchAny(p.exclude, s)
}

// LinkOnly reports whether the page is only used to discover links.
func (p *policy) LinkOnly(u *url.URL) bool {
	return matchAny(p.linkOnly, u.String())
}

func (p *policy) domainAllowed(host string) bool {
	for _, d := range p.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// canonical strips the fragment and lowercases scheme and host so the visited
// set treats trivially different spellings as one page.
func canonical(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}
