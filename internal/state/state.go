// Package state defines the durable key-value contract shared across passes.
// Any backend that offers get/put/list-by-prefix with atomic per-key replace
// satisfies it: local filesystem, object storage, or a database.
package state

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("state: key not found")

// Store is the only resource shared across invocations. Put must be atomic
// per key so an interrupted pass never leaves a partially-written entry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// Opener is an optional extension for backends that can stream values.
// The searcher prefers it for large artifacts.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Key layout. Artifact-scoped keys are derived from the hex SHA-256 of the
// artifact URL so re-fetches supersede the previous entry in place.
const (
	ArtifactPrefix = "artifacts/"
	NodePrefix     = "nodes/"
	HealthPrefix   = "health/"
	CursorPrefix   = "cursors/"
	MatchPrefix    = "matches/"
	PassPrefix     = "passes/"
	ReportPrefix   = "reports/"
)

// ArtifactKey addresses the decompressed body of a fetched sitemap.
func ArtifactKey(urlHash string) string { return ArtifactPrefix + urlHash }

// NodeKey addresses the SitemapNode metadata for an artifact.
func NodeKey(urlHash string) string { return NodePrefix + urlHash + ".json" }

// HealthKey addresses the persisted HealthRecord for a domain.
func HealthKey(domain string) string { return HealthPrefix + domain + ".json" }

// CursorKey addresses the SearchCursor for an artifact.
func CursorKey(urlHash string) string { return CursorPrefix + urlHash + ".json" }

// MatchesKey addresses the match records accumulated for an artifact.
func MatchesKey(urlHash string) string { return MatchPrefix + urlHash + ".json" }

// PassDoneKey marks an artifact as completed within a pass, making an
// interrupted pass resumable without re-fetching.
func PassDoneKey(passID, urlHash string) string {
	return PassPrefix + passID + "/" + urlHash
}

// ReportKey addresses the persisted report of a finished pass.
func ReportKey(passID string) string { return ReportPrefix + passID + ".json" }
