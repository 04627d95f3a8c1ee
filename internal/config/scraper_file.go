package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/markdave123-py/ragcrawl/internal/models"
)

// scraperFile is the on-disk shape accepted by `crawlctl config import`.
type scraperFile struct {
	Scrapers []models.ScraperConfig `yaml:"scrapers"`
}

// LoadScraperConfigs reads one or more scraper configs from a YAML file.
// The file holds either a single config or a `scrapers:` list.
func LoadScraperConfigs(path string) ([]models.ScraperConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scraper config: %w", err)
	}
	return ParseScraperConfigs(data)
}

// ParseScraperConfigs decodes YAML bytes, applies defaults and validates every entry.
func ParseScraperConfigs(data []byte) ([]models.ScraperConfig, error) {
	var file scraperFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil || len(file.Scrapers) == 0 {
		var single models.ScraperConfig
		if err2 := yaml.Unmarshal(data, &single); err2 != nil {
			if err != nil {
				return nil, fmt.Errorf("parse scraper config: %w", err)
			}
			return nil, fmt.Errorf("parse scraper config: %w", err2)
		}
		file.Scrapers = []models.ScraperConfig{single}
	}

	for i := range file.Scrapers {
		ApplyScraperDefaults(&file.Scrapers[i])
		if err := ValidateScraperConfig(&file.Scrapers[i]); err != nil {
			return nil, fmt.Errorf("scraper %d (%s): %w", i, file.Scrapers[i].Name, err)
		}
	}
	return file.Scrapers, nil
}

var configIDRe = regexp.MustCompile(`[^a-z0-9_-]+`)

// ApplyScraperDefaults fills zero values. A missing id is derived from the name.
func ApplyScraperDefaults(c *models.ScraperConfig) {
	if c.ID == "" {
		c.ID = strings.Trim(configIDRe.ReplaceAllString(strings.ToLower(c.Name), "-"), "-")
	}
	if c.MaxDepth < 0 {
		c.MaxDepth = 0
	}
	if c.MaxDepth == 0 && len(c.SitemapURLs) == 0 {
		c.MaxDepth = 2
	}
	if c.RateLimitRPS < 0 {
		c.RateLimitRPS = 0
	}
}

// ValidateScraperConfig rejects configs the crawler could not run.
func ValidateScraperConfig(c *models.ScraperConfig) error {
	var errs []error
	if c.TenantID == "" {
		errs = append(errs, errors.New("tenant_id is required"))
	}
	if c.ID == "" {
		errs = append(errs, errors.New("id or name is required"))
	}
	if len(c.SeedURLs) == 0 && len(c.SitemapURLs) == 0 {
		errs = append(errs, errors.New("at least one seed or sitemap url is required"))
	}
	for _, raw := range append(append([]string{}, c.SeedURLs...), c.SitemapURLs...) {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid url %q", raw))
		}
	}
	for _, group := range [][]string{c.IncludePatterns, c.ExcludePatterns, c.LinkOnlyPatterns} {
		for _, p := range group {
			if _, err := regexp.Compile(p); err != nil {
				errs = append(errs, fmt.Errorf("invalid pattern %q: %w", p, err))
			}
		}
	}
	return errors.Join(errs...)
}
