// Package collyfetcher implements the sitemap Fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
)

// gzipMagic is the two-byte header every gzip stream starts with. Content is
// sniffed rather than trusted from the URL, which may lie about .xml.gz.
var gzipMagic = []byte{0x1f, 0x8b}

// Config controls fetch behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	MaxBodyBytes int
}

// Fetcher retrieves sitemap documents with bounded retries and transparent
// gzip decompression. It does not classify or persist.
type Fetcher struct {
	cfg           Config
	retry         *hunter.RetryPolicy
	transport     http.RoundTripper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true // sitemap URLs come from robots.txt itself
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		retry:         hunter.NewRetryPolicy(cfg.MaxRetries),
		transport:     transport,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes an HTTP GET for url, retrying transient failures within the
// retry budget. The returned body is decompressed; a corrupt gzip payload is
// a decompression error and consumes no retries.
func (f *Fetcher) Fetch(ctx context.Context, url string) (hunter.FetchResponse, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := f.fetchOnce(ctx, url)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !f.retry.ShouldRetry(err, attempt) {
			break
		}
		f.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if serr := sleepWithContext(ctx, f.retry.Backoff(attempt)); serr != nil {
			return hunter.FetchResponse{}, serr
		}
	}
	return hunter.FetchResponse{}, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (hunter.FetchResponse, error) {
	var (
		result   hunter.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx, url, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return hunter.FetchResponse{}, err
	}
	return f.decompress(url, result)
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	url string,
	start time.Time,
	result *hunter.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.MaxBodySize = f.cfg.MaxBodyBytes
	collector.SetRequestTimeout(f.cfg.Timeout)
	// Bind the pass context to the round trip so expiry aborts the HTTP
	// call itself instead of orphaning it until the request timeout.
	collector.WithTransport(&ctxTransport{ctx: ctx, base: f.transport})

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/xml,text/xml,application/gzip,*/*")
	})

	collector.OnResponse(func(r *colly.Response) {
		*result = hunter.FetchResponse{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			Body:        append([]byte(nil), r.Body...),
			ContentType: r.Headers.Get("Content-Type"),
			Duration:    time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			*fetchErr = hunter.NewCrawlError(
				hunter.ClassifyStatus(r.StatusCode),
				url,
				fmt.Errorf("status %d: %w", r.StatusCode, err),
			)
			return
		}
		// Transport-level failure, no status to classify.
		*fetchErr = hunter.NewCrawlError(hunter.KindTransient, url, err)
	})

	return collector
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return hunter.NewCrawlError(hunter.KindTransient, url, err)
		}
		return nil
	}
}

// decompress unwraps a gzip payload when the body carries the gzip magic.
// The .gz suffix or Content-Type alone only raise the expectation; content
// decides.
func (f *Fetcher) decompress(url string, resp hunter.FetchResponse) (hunter.FetchResponse, error) {
	if !bytes.HasPrefix(resp.Body, gzipMagic) {
		return resp, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(resp.Body))
	if err != nil {
		return hunter.FetchResponse{}, hunter.NewCrawlError(hunter.KindDecompression, url, err)
	}
	defer gz.Close() //nolint:errcheck // read side
	body, err := io.ReadAll(io.LimitReader(gz, int64(f.cfg.MaxBodyBytes)))
	if err != nil {
		return hunter.FetchResponse{}, hunter.NewCrawlError(hunter.KindDecompression, url, err)
	}
	resp.Body = body
	resp.Compressed = true
	return resp, nil
}

// LooksCompressed reports whether a URL or content type advertises gzip.
func LooksCompressed(url, contentType string) bool {
	return strings.HasSuffix(url, ".gz") || strings.Contains(contentType, "gzip")
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff sleep canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// ctxTransport rebinds each request to the fetch context. colly issues the
// request with its own background context, so cancellation has to be grafted
// on at the transport seam.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
