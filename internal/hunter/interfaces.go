package hunter

import (
	"context"
	"time"
)

// RobotsResolver discovers the sitemap URLs a domain declares.
type RobotsResolver interface {
	Resolve(ctx context.Context, domain string) ([]string, error)
}

// Fetcher retrieves one sitemap document, decompressed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Publisher hands pass reports to an external reporting layer.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for artifact keys and content hashes.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces pass IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
