package crawler

import (
	"context"
	"net/url"
	"strings"
)

type robotsRules struct {
	allow    []string
	disallow []string
}

// allowed applies longest-prefix matching between Allow and Disallow.
func (r *robotsRules) allowed(path string) bool {
	if r == nil {
		return true
	}
	best, verdict := -1, true
	for _, p := range r.disallow {
		if strings.HasPrefix(path, p) && len(p) > best {
			best, verdict = len(p), false
		}
	}
	for _, p := range r.allow {
		if strings.HasPrefix(path, p) && len(p) >= best {
			best, verdict = len(p), true
		}
	}
	return verdict
}

// robotsFor returns the cached rules for u's host, fetching robots.txt once per
// session. A missing or unreadable robots.txt allows everything.
func (c *Crawler) robotsFor(ctx context.Context, s *session, u *url.URL) *robotsRules {
	base := u.Scheme + "://" + u.Host

	s.mu.Lock()
	rules, ok := s.robots[base]
	s.mu.Unlock()
	if ok {
		return rules
	}

	page, err := c.fetch(ctx, s, base+"/robots.txt")
	if err != nil {
		rules = &robotsRules{}
	} else {
		rules = parseRobotsTxt(string(page.body), s.userAgent)
	}

	s.mu.Lock()
	s.robots[base] = rules
	s.mu.Unlock()
	return rules
}

// parseRobotsTxt keeps the group matching userAgent, else the wildcard group.
func parseRobotsTxt(body, userAgent string) *robotsRules {
	userAgent = strings.ToLower(userAgent)

	var (
		wildcard, specific robotsRules
		matchedSpecific    bool
		agents             []string
		lastDirective      string
	)
	for _, line := range strings.Split(body, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		directive := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch directive {
		case "user-agent":
			if lastDirective == "user-agent" {
				agents = append(agents, strings.ToLower(value))
			} else {
				agents = []string{strings.ToLower(value)}
			}
		case "allow", "disallow":
			if len(agents) == 0 || value == "" {
				break
			}
			for _, a := range agents {
				var dst *robotsRules
				switch {
				case a != "*" && strings.HasPrefix(userAgent, a):
					dst, matchedSpecific = &specific, true
				case a == "*":
					dst = &wildcard
				default:
					continue
				}
				if directive == "allow" {
					dst.allow = append(dst.allow, value)
				} else {
					dst.disallow = append(dst.disallow, value)
				}
			}
		}
		lastDirective = directive
	}

	if matchedSpecific {
		return &specific
	}
	return &wildcard
}
