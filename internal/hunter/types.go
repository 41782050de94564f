// Package hunter defines core types shared across subsystems.
package hunter

import (
	"time"
)

// Kind labels a fetched sitemap document based on its content.
type Kind string

// Document kinds persisted with each SitemapNode.
const (
	KindIndex   Kind = "index"
	KindURLSet  Kind = "urlset"
	KindInvalid Kind = "invalid"
)

// CircuitState is the per-domain circuit breaker state.
type CircuitState string

// Circuit states. Open is terminal for the remainder of a pass.
const (
	CircuitClosed CircuitState = "closed"
	CircuitOpen   CircuitState = "open"
)

// Domain is a hostname under scan together with its declared sitemaps.
type Domain struct {
	Name     string   `json:"name"`
	Sitemaps []string `json:"sitemaps"`
}

// SitemapNode is the metadata persisted for each fetch attempt. A node is
// immutable once classified; a re-fetch supersedes it under the same key.
type SitemapNode struct {
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Kind        Kind      `json:"kind"`
	Size        int64     `json:"size"`
	Compressed  bool      `json:"compressed"`
	Partial     bool      `json:"partial"`
	ValidBytes  int64     `json:"valid_bytes"`
	Children    []string  `json:"children,omitempty"`
	Leaves      int       `json:"leaves"`
	FetchedAt   time.Time `json:"fetched_at"`
	ContentHash string    `json:"content_hash"`
}

// HealthRecord tracks fetch outcomes for one domain. Attempts and Failures
// are cumulative across passes; ConsecutiveFailures and Circuit are
// pass-scoped and start fresh each pass.
type HealthRecord struct {
	Domain              string       `json:"domain"`
	Attempts            int64        `json:"attempts"`
	Failures            int64        `json:"failures"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	Skipped             int64        `json:"skipped"`
	Circuit             CircuitState `json:"circuit"`
	LastFailureAt       time.Time    `json:"last_failure_at,omitzero"`
}

// SearchCursor records how far into an artifact the searcher has scanned.
// Offset never decreases across runs.
type SearchCursor struct {
	URL        string    `json:"url"`
	Offset     int64     `json:"offset"`
	MatchCount int64     `json:"match_count"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// MatchRecord is one phrase hit inside an artifact. Records are append-only.
type MatchRecord struct {
	URL     string    `json:"url"`
	Offset  int64     `json:"offset"`
	Context string    `json:"context"`
	FoundAt time.Time `json:"found_at"`
}

// FetchResponse is the result returned by a Fetcher implementation. Body is
// always decompressed.
type FetchResponse struct {
	URL         string
	StatusCode  int
	Body        []byte
	ContentType string
	Compressed  bool
	Duration    time.Duration
}

// DomainSummary is the per-domain slice of a pass report.
type DomainSummary struct {
	Name     string       `json:"name"`
	Reached  bool         `json:"reached"`
	Attempts int64        `json:"attempts"`
	Failures int64        `json:"failures"`
	Skipped  int64        `json:"skipped"`
	Circuit  CircuitState `json:"circuit"`
}

// PassReport is the structured record handed to the reporting layer after a
// pass. ArtifactsScanned distinguishes a genuine no-match scan from absent
// or unreachable content. Matches is the cumulative record list across all
// passes; NewMatches counts only the hits this pass added.
type PassReport struct {
	PassID             string          `json:"pass_id"`
	Phrase             string          `json:"phrase"`
	StartedAt          time.Time       `json:"started_at"`
	FinishedAt         time.Time       `json:"finished_at"`
	Domains            []DomainSummary `json:"domains"`
	ArtifactsFetched   int             `json:"artifacts_fetched"`
	ArtifactsInvalid   int             `json:"artifacts_invalid"`
	ArtifactsScanned   int             `json:"artifacts_scanned"`
	DomainsUnreachable int             `json:"domains_unreachable"`
	NewMatches         int             `json:"new_matches"`
	Matches            []MatchRecord   `json:"matches"`
}
