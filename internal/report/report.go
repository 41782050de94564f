// Package report assembles and distributes the end-of-pass summary.
package report

import (
	"context"

	"go.uber.org/zap"

	"github.com/p4blo4p/sitemap-hunter/internal/crawl"
	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
	"github.com/p4blo4p/sitemap-hunter/internal/search"
	"github.com/p4blo4p/sitemap-hunter/internal/state"
)

// Reporter persists a PassReport and optionally publishes it. A nil publisher
// means reports are local-only.
type Reporter struct {
	store     state.Store
	publisher hunter.Publisher
	topic     string
	clock     hunter.Clock
	logger    *zap.Logger
}

// New constructs a Reporter.
func New(
	store state.Store,
	publisher hunter.Publisher,
	topic string,
	clock hunter.Clock,
	logger *zap.Logger,
) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		store:     store,
		publisher: publisher,
		topic:     topic,
		clock:     clock,
		logger:    logger,
	}
}

// Build combines a crawl outcome with a search result into one PassReport.
// A domain counts as unreachable when it was never reached or produced no
// artifacts at all; "scanned and found nothing" is distinguishable from that
// by ArtifactsScanned alone. Either input may be nil when a pass runs only
// one of the two phases.
func Build(outcome *crawl.Outcome, sr *search.Result) hunter.PassReport {
	var rep hunter.PassReport
	if outcome != nil {
		rep.PassID = outcome.PassID
		rep.StartedAt = outcome.StartedAt
		for _, d := range outcome.Domains {
			summary := hunter.DomainSummary{Name: d.Name, Reached: d.Reached}
			if h, ok := outcome.Health[d.Name]; ok {
				summary.Attempts = h.Attempts
				summary.Failures = h.Failures
				summary.Skipped = h.Skipped
				summary.Circuit = h.Circuit
			}
			rep.Domains = append(rep.Domains, summary)
			rep.ArtifactsFetched += d.Fetched
			rep.ArtifactsInvalid += d.Invalid
			if d.Fetched == 0 {
				rep.DomainsUnreachable++
			}
		}
	}
	if sr != nil {
		rep.Phrase = sr.Phrase
		rep.ArtifactsScanned = sr.ArtifactsScanned + sr.ArtifactsUpToDate
		rep.NewMatches = len(sr.NewMatches)
	}
	return rep
}

// collectMatches aggregates every persisted match record. The match files
// are append-only, so this is the cumulative list across passes, not just
// what the current pass found.
func collectMatches(ctx context.Context, store state.Store) ([]hunter.MatchRecord, error) {
	keys, err := store.ListKeys(ctx, state.MatchPrefix)
	if err != nil {
		return nil, err
	}
	var all []hunter.MatchRecord
	for _, key := range keys {
		var recs []hunter.MatchRecord
		if err := state.GetJSON(ctx, store, key, &recs); err != nil {
			return nil, err
		}
		all = append(all, recs...)
	}
	return all, nil
}

// Finish folds the cumulative match list into the report, then stamps,
// persists, and publishes it. Persistence failure is an error; publish
// failure is logged and swallowed so a flaky broker never invalidates a
// completed pass.
func (r *Reporter) Finish(ctx context.Context, rep hunter.PassReport) error {
	rep.FinishedAt = r.clock.Now()

	matches, err := collectMatches(ctx, r.store)
	if err != nil {
		return hunter.NewCrawlError(hunter.KindStorage, rep.PassID, err)
	}
	rep.Matches = matches

	if err := state.PutJSON(ctx, r.store, state.ReportKey(rep.PassID), rep); err != nil {
		return hunter.NewCrawlError(hunter.KindStorage, rep.PassID, err)
	}

	if r.publisher != nil && r.topic != "" {
		id, err := r.publisher.Publish(ctx, r.topic, rep)
		if err != nil {
			r.logger.Error("report publish failed",
				zap.String("pass_id", rep.PassID),
				zap.String("topic", r.topic),
				zap.Error(err),
			)
		} else {
			r.logger.Info("report published",
				zap.String("pass_id", rep.PassID),
				zap.String("message_id", id),
			)
		}
	}

	r.logger.Info("pass finished",
		zap.String("pass_id", rep.PassID),
		zap.Int("domains", len(rep.Domains)),
		zap.Int("artifacts_fetched", rep.ArtifactsFetched),
		zap.Int("artifacts_invalid", rep.ArtifactsInvalid),
		zap.Int("artifacts_scanned", rep.ArtifactsScanned),
		zap.Int("domains_unreachable", rep.DomainsUnreachable),
		zap.Int("new_matches", rep.NewMatches),
		zap.Int("matches_total", len(rep.Matches)),
	)
	return nil
}
