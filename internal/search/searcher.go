// Package search scans persisted sitemap artifacts for a target phrase,
// resuming from per-artifact cursors so unchanged content is never re-scanned.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
	"github.com/p4blo4p/sitemap-hunter/internal/metrics"
	"github.com/p4blo4p/sitemap-hunter/internal/state"
)

// DefaultContextBytes is how much surrounding text a match record carries.
const DefaultContextBytes = 48

// Config controls one search run.
type Config struct {
	// Phrase is the literal substring to look for.
	Phrase string
	// CaseSensitive disables the default case folding.
	CaseSensitive bool
	// ContextBytes bounds the snippet stored around each match.
	ContextBytes int
}

// Searcher streams urlset artifacts out of the state store one at a time and
// records where the phrase occurs.
type Searcher struct {
	store  state.Store
	clock  hunter.Clock
	cfg    Config
	logger *zap.Logger
}

// Result summarizes one search run.
type Result struct {
	Phrase            string
	ArtifactsScanned  int
	ArtifactsUpToDate int
	BytesScanned      int64
	NewMatches        []hunter.MatchRecord
}

// New constructs a Searcher.
func New(store state.Store, clock hunter.Clock, cfg Config, logger *zap.Logger) *Searcher {
	if cfg.ContextBytes <= 0 {
		cfg.ContextBytes = DefaultContextBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{store: store, clock: clock, cfg: cfg, logger: logger}
}

// Run scans every urlset artifact beyond its cursor. Cursors only ever move
// forward, so an unmodified artifact yields zero new matches on a second run
// and a grown artifact is scanned from where the last run stopped.
func (s *Searcher) Run(ctx context.Context) (*Result, error) {
	if s.cfg.Phrase == "" {
		return nil, errors.New("search: phrase must not be empty")
	}

	nodeKeys, err := s.store.ListKeys(ctx, state.NodePrefix)
	if err != nil {
		return nil, hunter.NewCrawlError(hunter.KindStorage, state.NodePrefix, err)
	}

	result := &Result{Phrase: s.cfg.Phrase}
	for _, key := range nodeKeys {
		if ctx.Err() != nil {
			s.logger.Warn("search interrupted", zap.Int("scanned", result.ArtifactsScanned))
			return result, nil
		}
		if err := s.scanArtifact(ctx, key, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Searcher) scanArtifact(ctx context.Context, nodeKey string, result *Result) error {
	urlHash := strings.TrimSuffix(strings.TrimPrefix(nodeKey, state.NodePrefix), ".json")

	var node hunter.SitemapNode
	if err := state.GetJSON(ctx, s.store, nodeKey, &node); err != nil {
		return hunter.NewCrawlError(hunter.KindStorage, nodeKey, err)
	}
	if node.Kind != hunter.KindURLSet {
		return nil
	}

	var cursor hunter.SearchCursor
	err := state.GetJSON(ctx, s.store, state.CursorKey(urlHash), &cursor)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return hunter.NewCrawlError(hunter.KindStorage, node.URL, err)
	}
	cursor.URL = node.URL

	body, err := s.readArtifact(ctx, state.ArtifactKey(urlHash))
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			s.logger.Warn("node has no stored artifact", zap.String("url", node.URL))
			return nil
		}
		return hunter.NewCrawlError(hunter.KindStorage, node.URL, err)
	}

	// A partial artifact is scanned only through its confirmed-complete
	// region; the cursor must stay behind it so a later complete re-fetch
	// resumes correctly.
	limit := len(body)
	if node.Partial && node.ValidBytes < int64(limit) {
		limit = int(node.ValidBytes)
	}
	if cursor.Offset >= int64(limit) {
		result.ArtifactsUpToDate++
		return nil
	}

	matches := s.scan(body[:limit], int(cursor.Offset), node.URL)
	scanned := int64(limit) - cursor.Offset

	if len(matches) > 0 {
		var existing []hunter.MatchRecord
		gerr := state.GetJSON(ctx, s.store, state.MatchesKey(urlHash), &existing)
		if gerr != nil && !errors.Is(gerr, state.ErrNotFound) {
			return hunter.NewCrawlError(hunter.KindStorage, node.URL, gerr)
		}
		existing = append(existing, matches...)
		if perr := state.PutJSON(ctx, s.store, state.MatchesKey(urlHash), existing); perr != nil {
			return hunter.NewCrawlError(hunter.KindStorage, node.URL, perr)
		}
	}

	cursor.Offset = int64(limit)
	cursor.MatchCount += int64(len(matches))
	cursor.ScannedAt = s.clock.Now()
	if perr := state.PutJSON(ctx, s.store, state.CursorKey(urlHash), cursor); perr != nil {
		return hunter.NewCrawlError(hunter.KindStorage, node.URL, perr)
	}

	result.ArtifactsScanned++
	result.BytesScanned += scanned
	result.NewMatches = append(result.NewMatches, matches...)
	metrics.ObserveScanBytes(scanned)
	metrics.ObserveMatches(len(matches))

	s.logger.Debug("artifact scanned",
		zap.String("url", node.URL),
		zap.Int64("new_bytes", scanned),
		zap.Int("matches", len(matches)),
	)
	return nil
}

// scan finds phrase occurrences in body[:limit] that end beyond prevOffset.
// It backs up by len(phrase)-1 bytes so a match straddling the previous
// cursor is caught exactly once. Matching always happens in the original
// byte space: offsets index the stored artifact, so case folding must never
// change byte positions.
func (s *Searcher) scan(body []byte, prevOffset int, url string) []hunter.MatchRecord {
	needle := []byte(s.cfg.Phrase)

	from := prevOffset - (len(needle) - 1)
	if from < 0 {
		from = 0
	}

	var matches []hunter.MatchRecord
	for from < len(body) {
		i := s.index(body[from:], needle)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(needle)
		if end > prevOffset {
			matches = append(matches, hunter.MatchRecord{
				URL:     url,
				Offset:  int64(start),
				Context: snippet(body, start, end, s.cfg.ContextBytes),
				FoundAt: s.clock.Now(),
			})
		}
		from = end
	}
	return matches
}

// index locates needle in hay, byte-for-byte with ASCII case folding when
// the search is case-insensitive. Folding per byte keeps lengths intact, so
// the returned index is valid in hay itself even around multi-byte runes.
func (s *Searcher) index(hay, needle []byte) int {
	if s.cfg.CaseSensitive {
		return bytes.Index(hay, needle)
	}
	if len(needle) == 0 || len(needle) > len(hay) {
		return -1
	}
	first := lowerASCII(needle[0])
	for i := 0; i+len(needle) <= len(hay); i++ {
		if lowerASCII(hay[i]) != first {
			continue
		}
		j := 1
		for ; j < len(needle); j++ {
			if lowerASCII(hay[i+j]) != lowerASCII(needle[j]) {
				break
			}
		}
		if j == len(needle) {
			return i
		}
	}
	return -1
}

func lowerASCII(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func snippet(body []byte, start, end, pad int) string {
	lo := start - pad
	if lo < 0 {
		lo = 0
	}
	hi := end + pad
	if hi > len(body) {
		hi = len(body)
	}
	return string(body[lo:hi])
}

// readArtifact loads one artifact body, preferring a streaming open when the
// backend offers it. Only one body is held in memory at a time.
func (s *Searcher) readArtifact(ctx context.Context, key string) ([]byte, error) {
	if opener, ok := s.store.(state.Opener); ok {
		rc, err := opener.Open(ctx, key)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		body, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		return body, nil
	}
	return s.store.Get(ctx, key)
}
