package crawler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

type fetched struct {
	url         *url.URL // after redirects
	contentType string
	body        []byte
}

func (f *fetched) isHTML() bool {
	mt, _, err := mime.ParseMediaType(f.contentType)
	if err != nil {
		return f.contentType == ""
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// fetch waits on the session limiter, then GETs target with the session's
// user agent and auth headers. Non-2xx responses are errors.
func (c *Crawler) fetch(ctx context.Context, s *session, target string) (*fetched, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range s.cfg.AuthHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("get %s: status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	return &fetched{
		url:         resp.Request.URL,
		contentType: strings.TrimSpace(resp.Header.Get("Content-Type")),
		body:        body,
	}, nil
}
