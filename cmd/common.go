package cmd

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/p4blo4p/sitemap-hunter/internal/api"
	"github.com/p4blo4p/sitemap-hunter/internal/app"
	"github.com/p4blo4p/sitemap-hunter/internal/clock/system"
	"github.com/p4blo4p/sitemap-hunter/internal/crawl"
	collyfetcher "github.com/p4blo4p/sitemap-hunter/internal/fetcher/colly"
	"github.com/p4blo4p/sitemap-hunter/internal/hash/sha256"
	"github.com/p4blo4p/sitemap-hunter/internal/health"
	"github.com/p4blo4p/sitemap-hunter/internal/id/uuid"
	"github.com/p4blo4p/sitemap-hunter/internal/metrics"
	"github.com/p4blo4p/sitemap-hunter/internal/report"
	"github.com/p4blo4p/sitemap-hunter/internal/robots"
	"github.com/p4blo4p/sitemap-hunter/internal/search"

	"github.com/spf13/cobra"
)

func buildOrchestrator(a *app.App) *crawl.Orchestrator {
	cfg := a.Config
	resolver := robots.New(
		&http.Client{Timeout: cfg.FetchTimeout()},
		robots.Config{
			UserAgent: cfg.Crawl.UserAgent,
			Timeout:   cfg.FetchTimeout(),
			Fallback:  cfg.Crawl.SitemapFallback,
		},
		a.Logger,
	)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Crawl.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxRetries:   cfg.HTTP.RetryCount,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, a.Logger)
	tracker := health.New(cfg.Crawl.CircuitFailureThreshold)

	return crawl.New(
		resolver,
		fetcher,
		tracker,
		a.Store,
		sha256.New(),
		system.New(),
		crawl.Config{
			MaxDepth:    cfg.Crawl.MaxRecursionDepth,
			Concurrency: cfg.Crawl.Concurrency,
			PassTimeout: cfg.PassTimeout(),
		},
		a.Logger,
	)
}

func buildSearcher(a *app.App) *search.Searcher {
	return search.New(a.Store, system.New(), search.Config{
		Phrase:        a.Config.Search.Phrase,
		CaseSensitive: a.Config.Search.CaseSensitive,
		ContextBytes:  a.Config.Search.ContextBytes,
	}, a.Logger)
}

func buildReporter(a *app.App) *report.Reporter {
	return report.New(a.Store, a.Publisher, a.Config.Report.Topic, system.New(), a.Logger)
}

// readSites loads the domain list, one per line, ignoring blanks and
// #-comments. Order is preserved; passes process domains as listed.
func readSites(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sites file: %w", err)
	}
	defer f.Close()

	var sites []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sites = append(sites, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("sites file %s lists no domains", path)
	}
	return sites, nil
}

// resolvePassID reuses the --pass flag when set so an interrupted pass can be
// resumed, otherwise mints a fresh ID.
func resolvePassID(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	id, err := uuid.New().NewID()
	if err != nil {
		return "", fmt.Errorf("generate pass id: %w", err)
	}
	return id, nil
}

// startMetricsServer exposes /metrics and /healthz for the duration of the
// command when a port is configured.
func startMetricsServer(cmd *cobra.Command, a *app.App) {
	metrics.Init()
	if a.Config.Server.MetricsPort <= 0 {
		return
	}
	addr := fmt.Sprintf(":%d", a.Config.Server.MetricsPort)
	srv := api.NewServer(a.Store, a.Logger)
	go func() {
		if err := srv.ListenAndServe(cmd.Context(), addr); err != nil {
			a.Logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	a.Logger.Info("metrics server listening", zap.String("addr", addr))
}
