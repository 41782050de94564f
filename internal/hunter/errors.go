package hunter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind partitions fetch and pipeline failures for health accounting and
// retry decisions.
type ErrorKind string

// Error kinds surfaced by the pipeline.
const (
	KindTransient     ErrorKind = "network_transient"
	KindPermanent     ErrorKind = "network_permanent"
	KindDecompression ErrorKind = "decompression"
	KindParse         ErrorKind = "parse"
	KindCircuitOpen   ErrorKind = "circuit_open"
	KindStorage       ErrorKind = "storage"
)

// CrawlError wraps a failure with its kind and the URL it concerns.
type CrawlError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// NewCrawlError builds a CrawlError.
func NewCrawlError(kind ErrorKind, url string, err error) *CrawlError {
	return &CrawlError{Kind: kind, URL: url, Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to transient for plain
// network-ish errors and permanent otherwise.
func KindOf(err error) ErrorKind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if isTimeout(err) {
		return KindTransient
	}
	return KindPermanent
}

// ClassifyStatus maps an HTTP status code to an error kind. 429 counts as
// transient alongside 5xx; every other 4xx is permanent.
func ClassifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindTransient
	case code >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// Retryable reports whether the error should consume retry budget.
// Decompression failures and permanent HTTP errors fail immediately.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if isTimeout(err) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return KindOf(err) == KindTransient
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
