// Package robots resolves the sitemap URLs a domain declares in robots.txt.
package robots

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// ErrUnavailable signals a soft failure: robots.txt was missing or
// unreachable. The caller records one failure and skips the domain.
var ErrUnavailable = errors.New("robots.txt unavailable")

// Config controls resolver behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Fallback appends /sitemap.xml when robots.txt is present but declares
	// no sitemaps.
	Fallback bool
}

// Resolver fetches and parses robots.txt for sitemap discovery.
type Resolver struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Resolver over a shared HTTP client.
func New(client *http.Client, cfg Config, logger *zap.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: client, cfg: cfg, logger: logger}
}

// Resolve returns the declared sitemap URLs, deduplicated in order of first
// appearance. A missing (404) or unreachable robots.txt yields an empty set
// and ErrUnavailable; malformed content is treated as empty.
func (r *Resolver) Resolve(ctx context.Context, domain string) ([]string, error) {
	base, err := BaseURL(domain)
	if err != nil {
		return nil, fmt.Errorf("normalize domain %q: %w", domain, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	robotsURL := base.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain,*/*")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("robots.txt unreachable", zap.String("url", robotsURL), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, robotsURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read side

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("robots.txt missing",
			zap.String("url", robotsURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: %s: status %d", ErrUnavailable, robotsURL, resp.StatusCode)
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		// Unparseable robots.txt is treated the same as one with no
		// Sitemap directives.
		r.logger.Debug("robots.txt unparseable", zap.String("url", robotsURL), zap.Error(err))
		data = nil
	}

	var sitemaps []string
	if data != nil {
		sitemaps = dedupe(data.Sitemaps)
	}
	if len(sitemaps) == 0 && r.cfg.Fallback {
		fallback := base.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()
		r.logger.Debug("no sitemaps declared, trying default",
			zap.String("domain", domain),
			zap.String("fallback", fallback),
		)
		sitemaps = []string{fallback}
	}
	return sitemaps, nil
}

// BaseURL normalizes a site identifier into an absolute URL, defaulting the
// scheme to https for bare hostnames.
func BaseURL(domain string) (*url.URL, error) {
	s := strings.TrimSpace(domain)
	if s == "" {
		return nil, errors.New("empty domain")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("no host in %q", domain)
	}
	return u, nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
