// Package crawl drives the sitemap discovery graph for a pass: robots
// resolution, recursive index expansion, classification, health tracking,
// and persistence.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/p4blo4p/sitemap-hunter/internal/classify"
	"github.com/p4blo4p/sitemap-hunter/internal/health"
	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
	"github.com/p4blo4p/sitemap-hunter/internal/metrics"
	"github.com/p4blo4p/sitemap-hunter/internal/state"
)

// Config controls orchestrator behavior.
type Config struct {
	// MaxDepth bounds sitemap-index expansion. Depth 0 is a URL declared
	// in robots.txt.
	MaxDepth int
	// Concurrency is the number of domains crawled in parallel.
	Concurrency int
	// PassTimeout is the global budget for one pass; zero means no limit.
	PassTimeout time.Duration
}

// Orchestrator runs one crawl pass over a domain list.
type Orchestrator struct {
	robots  hunter.RobotsResolver
	fetcher hunter.Fetcher
	tracker *health.Tracker
	store   state.Store
	hasher  hunter.Hasher
	clock   hunter.Clock
	cfg     Config
	logger  *zap.Logger
}

// DomainResult summarizes one domain's crawl within a pass.
type DomainResult struct {
	Name     string
	Reached  bool
	Fetched  int
	Invalid  int
	Failures int
}

// Outcome aggregates a pass's crawl results for the reporting layer.
type Outcome struct {
	PassID    string
	StartedAt time.Time
	Domains   []DomainResult
	Health    map[string]hunter.HealthRecord
}

// New constructs an Orchestrator.
func New(
	resolver hunter.RobotsResolver,
	fetcher hunter.Fetcher,
	tracker *health.Tracker,
	store state.Store,
	hasher hunter.Hasher,
	clock hunter.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		robots:  resolver,
		fetcher: fetcher,
		tracker: tracker,
		store:   store,
		hasher:  hasher,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run crawls the domain list and returns the pass outcome. Domains not
// reached before the pass budget expires are absent from the outcome; work
// persisted before expiry stays persisted. Only a storage failure aborts
// the pass, and whatever completed before it remains valid.
func (o *Orchestrator) Run(ctx context.Context, passID string, domains []string) (*Outcome, error) {
	if o.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.PassTimeout)
		defer cancel()
	}

	o.seedHealth(ctx, domains)

	outcome := &Outcome{
		PassID:    passID,
		StartedAt: o.clock.Now(),
	}

	jobs := make(chan string)
	results := make(map[string]DomainResult, len(domains))
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		fatalErr error
	)

	for i := 0; i < o.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for domain := range jobs {
				res, err := o.crawlDomain(ctx, passID, domain)
				mu.Lock()
				results[domain] = res
				if err != nil && fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, domain := range domains {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- domain:
		}
	}
	close(jobs)
	wg.Wait()

	// Input order, reached domains only.
	for _, domain := range domains {
		if res, ok := results[domain]; ok && res.Reached {
			outcome.Domains = append(outcome.Domains, res)
		}
	}
	outcome.Health = o.tracker.Snapshot()

	// Flush health one last time so intermediate state survives even when
	// the pass aborted.
	o.flushHealth(outcome.Health)

	if fatalErr != nil {
		return outcome, fatalErr
	}
	return outcome, nil
}

type frontierEntry struct {
	url   string
	depth int
}

// crawlDomain expands one domain's sitemap graph with an explicit work queue
// and a seen-set, never recursing. The returned error is non-nil only for
// storage failures, which are fatal for the pass.
func (o *Orchestrator) crawlDomain(ctx context.Context, passID, domain string) (DomainResult, error) {
	res := DomainResult{Name: domain, Reached: true}
	log := o.logger.With(zap.String("domain", domain))

	if ctx.Err() != nil {
		res.Reached = false
		return res, nil
	}

	sitemaps, err := o.robots.Resolve(ctx, domain)
	if err != nil {
		if ctx.Err() != nil {
			res.Reached = false
			return res, nil
		}
		// Soft failure: robots.txt missing or unreachable. One failure,
		// domain skipped.
		log.Warn("robots.txt unavailable", zap.Error(err))
		rec := o.tracker.RecordFailure(domain, o.clock.Now())
		res.Failures++
		metrics.ObserveFetch(domain, "robots_unavailable", 0)
		if perr := o.persistHealth(ctx, rec); perr != nil {
			return res, perr
		}
		return res, nil
	}
	if len(sitemaps) == 0 {
		log.Info("no sitemaps declared")
		return res, nil
	}

	queue := make([]frontierEntry, 0, len(sitemaps))
	for _, u := range sitemaps {
		queue = append(queue, frontierEntry{url: u, depth: 0})
	}
	visited := make(map[string]struct{}, len(queue))

	for len(queue) > 0 {
		if ctx.Err() != nil {
			log.Warn("pass budget expired mid-domain", zap.Int("pending", len(queue)))
			return res, nil
		}

		entry := queue[0]
		queue = queue[1:]
		if _, ok := visited[entry.url]; ok {
			continue
		}
		visited[entry.url] = struct{}{}

		if !o.tracker.Allow(domain) {
			o.tracker.RecordSkip(domain)
			log.Info("skipped, circuit open", zap.String("url", entry.url))
			metrics.ObserveFetch(domain, "circuit_open", 0)
			continue
		}

		node, err := o.processURL(ctx, passID, domain, entry, log)
		if err != nil {
			var ce *hunter.CrawlError
			if errors.As(err, &ce) && ce.Kind == hunter.KindStorage {
				return res, err
			}
			if ctx.Err() != nil {
				return res, nil
			}
			res.Failures++
			continue
		}

		res.Fetched++
		if node.Kind == hunter.KindInvalid {
			res.Invalid++
		}
		if node.Kind == hunter.KindIndex && entry.depth < o.cfg.MaxDepth {
			for _, child := range node.Children {
				if _, ok := visited[child]; !ok {
					queue = append(queue, frontierEntry{url: child, depth: entry.depth + 1})
				}
			}
		}
	}
	return res, nil
}

// processURL fetches, classifies, and persists one sitemap URL, updating
// health before returning. A storage failure comes back as KindStorage.
func (o *Orchestrator) processURL(
	ctx context.Context,
	passID, domain string,
	entry frontierEntry,
	log *zap.Logger,
) (hunter.SitemapNode, error) {
	urlHash, err := o.hasher.Hash([]byte(entry.url))
	if err != nil {
		return hunter.SitemapNode{}, hunter.NewCrawlError(hunter.KindStorage, entry.url, err)
	}

	// Restart safety: an artifact completed earlier in this same pass is
	// not re-fetched; its persisted node still feeds traversal.
	if passID != "" {
		if _, err := o.store.Get(ctx, state.PassDoneKey(passID, urlHash)); err == nil {
			var node hunter.SitemapNode
			if gerr := state.GetJSON(ctx, o.store, state.NodeKey(urlHash), &node); gerr == nil {
				log.Debug("already completed in this pass", zap.String("url", entry.url))
				return node, nil
			}
		}
	}

	resp, err := o.fetcher.Fetch(ctx, entry.url)
	if err != nil {
		if ctx.Err() != nil {
			return hunter.SitemapNode{}, fmt.Errorf("fetch aborted: %w", err)
		}
		kind := hunter.KindOf(err)
		log.Warn("fetch failed",
			zap.String("url", entry.url),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		rec := o.tracker.RecordFailure(domain, o.clock.Now())
		metrics.ObserveFetch(domain, string(kind), 0)
		if rec.Circuit == hunter.CircuitOpen {
			metrics.ObserveCircuitOpen()
			log.Warn("circuit opened",
				zap.Int("consecutive_failures", rec.ConsecutiveFailures),
			)
		}
		if perr := o.persistHealth(ctx, rec); perr != nil {
			return hunter.SitemapNode{}, perr
		}
		return hunter.SitemapNode{}, err
	}

	result := classify.Classify(resp.Body)
	contentHash, err := o.hasher.Hash(resp.Body)
	if err != nil {
		return hunter.SitemapNode{}, hunter.NewCrawlError(hunter.KindStorage, entry.url, err)
	}

	node := hunter.SitemapNode{
		URL:         entry.url,
		Domain:      domain,
		Kind:        result.Kind,
		Size:        int64(len(resp.Body)),
		Compressed:  resp.Compressed,
		Partial:     result.Partial,
		ValidBytes:  result.ValidBytes,
		Children:    result.Children,
		Leaves:      result.Leaves,
		FetchedAt:   o.clock.Now(),
		ContentHash: contentHash,
	}

	if err := o.persistNode(ctx, passID, urlHash, node, resp.Body); err != nil {
		return hunter.SitemapNode{}, err
	}

	// A fetch that came back parseable-or-not is still a successful fetch;
	// parse failures are recorded on the node, not in health.
	rec := o.tracker.RecordSuccess(domain)
	metrics.ObserveFetch(domain, "success", node.Size)
	metrics.ObserveArtifact(string(node.Kind))
	if perr := o.persistHealth(ctx, rec); perr != nil {
		return hunter.SitemapNode{}, perr
	}

	log.Debug("fetched sitemap",
		zap.String("url", entry.url),
		zap.String("kind", string(node.Kind)),
		zap.Int64("size", node.Size),
		zap.Bool("partial", node.Partial),
	)
	return node, nil
}

func (o *Orchestrator) persistNode(
	ctx context.Context,
	passID, urlHash string,
	node hunter.SitemapNode,
	body []byte,
) error {
	if err := o.store.Put(ctx, state.ArtifactKey(urlHash), body); err != nil {
		return hunter.NewCrawlError(hunter.KindStorage, node.URL, err)
	}
	if err := state.PutJSON(ctx, o.store, state.NodeKey(urlHash), node); err != nil {
		return hunter.NewCrawlError(hunter.KindStorage, node.URL, err)
	}
	if passID != "" {
		if err := o.store.Put(ctx, state.PassDoneKey(passID, urlHash), []byte("1")); err != nil {
			return hunter.NewCrawlError(hunter.KindStorage, node.URL, err)
		}
	}
	return nil
}

func (o *Orchestrator) persistHealth(ctx context.Context, rec hunter.HealthRecord) error {
	if err := state.PutJSON(ctx, o.store, state.HealthKey(rec.Domain), rec); err != nil {
		return hunter.NewCrawlError(hunter.KindStorage, rec.Domain, err)
	}
	return nil
}

func (o *Orchestrator) seedHealth(ctx context.Context, domains []string) {
	for _, domain := range domains {
		var rec hunter.HealthRecord
		err := state.GetJSON(ctx, o.store, state.HealthKey(domain), &rec)
		if err != nil {
			if !errors.Is(err, state.ErrNotFound) {
				o.logger.Warn("health record unreadable, starting fresh",
					zap.String("domain", domain),
					zap.Error(err),
				)
			}
			continue
		}
		rec.Domain = domain
		o.tracker.Seed(rec)
	}
}

// flushHealth writes the final snapshot with a detached context so records
// survive pass-budget expiry.
func (o *Orchestrator) flushHealth(snapshot map[string]hunter.HealthRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, rec := range snapshot {
		if err := o.persistHealth(ctx, rec); err != nil {
			o.logger.Error("final health flush failed",
				zap.String("domain", rec.Domain),
				zap.Error(err),
			)
		}
	}
}
