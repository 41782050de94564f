package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
	"github.com/p4blo4p/sitemap-hunter/internal/state"
	"github.com/p4blo4p/sitemap-hunter/internal/state/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func putArtifact(t *testing.T, store state.Store, urlHash string, node hunter.SitemapNode, body []byte) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, state.ArtifactKey(urlHash), body))
	require.NoError(t, state.PutJSON(ctx, store, state.NodeKey(urlHash), node))
}

func newSearcher(store state.Store, cfg Config) *Searcher {
	return New(store, &fakeClock{now: time.Unix(1700000000, 0).UTC()}, cfg, nil)
}

func TestRunFindsPhrase(t *testing.T) {
	t.Parallel()

	store := memory.New()
	body := []byte(`<urlset><url><loc>https://a.example/dragon-ball-z-figure</loc></url></urlset>`)
	putArtifact(t, store, "h1", hunter.SitemapNode{
		URL: "https://a.example/s1.xml", Kind: hunter.KindURLSet,
	}, body)

	res, err := newSearcher(store, Config{Phrase: "Dragon-Ball"}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.NewMatches, 1)
	m := res.NewMatches[0]
	assert.Equal(t, "https://a.example/s1.xml", m.URL)
	assert.Contains(t, m.Context, "dragon-ball-z")
	assert.Equal(t, 1, res.ArtifactsScanned)
	assert.Equal(t, int64(len(body)), res.BytesScanned)

	var cursor hunter.SearchCursor
	require.NoError(t, state.GetJSON(context.Background(), store, state.CursorKey("h1"), &cursor))
	assert.Equal(t, int64(len(body)), cursor.Offset)
	assert.Equal(t, int64(1), cursor.MatchCount)

	var persisted []hunter.MatchRecord
	require.NoError(t, state.GetJSON(context.Background(), store, state.MatchesKey("h1"), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, m.Offset, persisted[0].Offset)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	store := memory.New()
	putArtifact(t, store, "h1", hunter.SitemapNode{
		URL: "https://a.example/s.xml", Kind: hunter.KindURLSet,
	}, []byte("prefix dragon ball suffix"))

	searcher := newSearcher(store, Config{Phrase: "dragon ball"})
	first, err := searcher.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.NewMatches, 1)

	second, err := searcher.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.NewMatches)
	assert.Equal(t, 0, second.ArtifactsScanned)
	assert.Equal(t, 1, second.ArtifactsUpToDate)
}

func TestRunScansOnlyGrownRegion(t *testing.T) {
	t.Parallel()

	store := memory.New()
	ctx := context.Background()
	old := []byte("xx dragon ball xx")
	putArtifact(t, store, "h1", hunter.SitemapNode{
		URL: "https://a.example/s.xml", Kind: hunter.KindURLSet,
	}, old)

	searcher := newSearcher(store, Config{Phrase: "dragon ball"})
	first, err := searcher.Run(ctx)
	require.NoError(t, err)
	require.Len(t, first.NewMatches, 1)

	grown := append(append([]byte{}, old...), []byte(" more dragon ball tail")...)
	require.NoError(t, store.Put(ctx, state.ArtifactKey("h1"), grown))

	second, err := searcher.Run(ctx)
	require.NoError(t, err)
	require.Len(t, second.NewMatches, 1)
	assert.Greater(t, second.NewMatches[0].Offset, int64(len(old)))
	assert.Equal(t, int64(len(grown)-len(old)), second.BytesScanned)

	var persisted []hunter.MatchRecord
	require.NoError(t, state.GetJSON(ctx, store, state.MatchesKey("h1"), &persisted))
	assert.Len(t, persisted, 2)
}

func TestRunCatchesMatchStraddlingCursor(t *testing.T) {
	t.Parallel()

	store := memory.New()
	ctx := context.Background()
	// First half ends mid-phrase; the straddling occurrence must be found
	// exactly once after the artifact grows.
	old := []byte("aaaa drag")
	putArtifact(t, store, "h1", hunter.SitemapNode{
		URL: "https://a.example/s.xml", Kind: hunter.KindURLSet,
	}, old)

	searcher := newSearcher(store, Config{Phrase: "dragon"})
	first, err := searcher.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, first.NewMatches)

	require.NoError(t, store.Put(ctx, state.ArtifactKey("h1"), []byte("aaaa dragon tail")))
	second, err := searcher.Run(ctx)
	require.NoError(t, err)
	require.Len(t, second.NewMatches, 1)
	assert.Equal(t, int64(5), second.NewMatches[0].Offset)

	third, err := searcher.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, third.NewMatches)
}

func TestRunOffsetsStableAroundMultiByteRunes(t *testing.T) {
	t.Parallel()

	store := memory.New()
	ctx := context.Background()
	// U+212A (KELVIN SIGN) is three bytes but case-folds to the one-byte
	// "k"; offsets must still index the stored bytes.
	body := []byte("KK pad dragon tail")
	putArtifact(t, store, "h1", hunter.SitemapNode{
		URL: "https://a.example/s.xml", Kind: hunter.KindURLSet,
	}, body)

	searcher := newSearcher(store, Config{Phrase: "dragon"})
	first, err := searcher.Run(ctx)
	require.NoError(t, err)
	require.Len(t, first.NewMatches, 1)

	off := first.NewMatches[0].Offset
	assert.Equal(t, "dragon", string(body[off:off+6]))
	assert.Contains(t, first.NewMatches[0].Context, "pad dragon tail")

	// Growing the artifact past the cursor must still surface the appended
	// occurrence; the cursor lives in stored-byte space too.
	grown := append(append([]byte{}, body...), []byte(" more dragon")...)
	require.NoError(t, store.Put(ctx, state.ArtifactKey("h1"), grown))

	second, err := searcher.Run(ctx)
	require.NoError(t, err)
	require.Len(t, second.NewMatches, 1)
	off = second.NewMatches[0].Offset
	assert.Equal(t, "dragon", string(grown[off:off+6]))
	assert.Greater(t, off, int64(len(body)))
}

func TestRunPartialArtifactCapsCursor(t *testing.T) {
	t.Parallel()

	store := memory.New()
	ctx := context.Background()
	body := []byte("good region dragon | unconfirmed tail dragon")
	putArtifact(t, store, "h1", hunter.SitemapNode{
		URL:        "https://a.example/s.xml",
		Kind:       hunter.KindURLSet,
		Partial:    true,
		ValidBytes: 19, // through "good region dragon "
	}, body)

	searcher := newSearcher(store, Config{Phrase: "dragon"})
	first, err := searcher.Run(ctx)
	require.NoError(t, err)
	require.Len(t, first.NewMatches, 1)

	var cursor hunter.SearchCursor
	require.NoError(t, state.GetJSON(ctx, store, state.CursorKey("h1"), &cursor))
	assert.Equal(t, int64(19), cursor.Offset)

	// A complete re-fetch replaces the node; the tail is scanned from the
	// old cursor and yields the second occurrence.
	require.NoError(t, state.PutJSON(ctx, store, state.NodeKey("h1"), hunter.SitemapNode{
		URL: "https://a.example/s.xml", Kind: hunter.KindURLSet,
	}))
	second, err := searcher.Run(ctx)
	require.NoError(t, err)
	require.Len(t, second.NewMatches, 1)
	assert.Greater(t, second.NewMatches[0].Offset, int64(19))
}

func TestRunSkipsNonURLSetNodes(t *testing.T) {
	t.Parallel()

	store := memory.New()
	putArtifact(t, store, "h1", hunter.SitemapNode{
		URL: "https://a.example/index.xml", Kind: hunter.KindIndex,
	}, []byte("dragon"))
	putArtifact(t, store, "h2", hunter.SitemapNode{
		URL: "https://a.example/broken.xml", Kind: hunter.KindInvalid,
	}, []byte("dragon"))

	res, err := newSearcher(store, Config{Phrase: "dragon"}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.NewMatches)
	assert.Equal(t, 0, res.ArtifactsScanned)
}

func TestRunCaseSensitivity(t *testing.T) {
	t.Parallel()

	store := memory.New()
	putArtifact(t, store, "h1", hunter.SitemapNode{
		URL: "https://a.example/s.xml", Kind: hunter.KindURLSet,
	}, []byte("DRAGON BALL"))

	res, err := newSearcher(store, Config{Phrase: "dragon ball", CaseSensitive: true}).
		Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.NewMatches)

	store2 := memory.New()
	putArtifact(t, store2, "h1", hunter.SitemapNode{
		URL: "https://a.example/s.xml", Kind: hunter.KindURLSet,
	}, []byte("DRAGON BALL"))
	res, err = newSearcher(store2, Config{Phrase: "dragon ball"}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.NewMatches, 1)
}

func TestRunRejectsEmptyPhrase(t *testing.T) {
	t.Parallel()

	_, err := newSearcher(memory.New(), Config{}).Run(context.Background())
	require.Error(t, err)
}
