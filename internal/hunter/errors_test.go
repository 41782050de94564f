package hunter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, KindTransient, ClassifyStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindTransient, ClassifyStatus(http.StatusInternalServerError))
	assert.Equal(t, KindTransient, ClassifyStatus(http.StatusBadGateway))
	assert.Equal(t, KindPermanent, ClassifyStatus(http.StatusNotFound))
	assert.Equal(t, KindPermanent, ClassifyStatus(http.StatusForbidden))
	assert.Equal(t, KindPermanent, ClassifyStatus(http.StatusGone))
}

func TestCrawlError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewCrawlError(KindDecompression, "https://a.example/s.xml.gz", cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindDecompression, KindOf(err))
	assert.Contains(t, err.Error(), "decompression")
	assert.Contains(t, err.Error(), "https://a.example/s.xml.gz")
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := NewCrawlError(KindPermanent, "https://a.example/x", errors.New("404"))
	wrapped := fmt.Errorf("fetch: %w", inner)
	assert.Equal(t, KindPermanent, KindOf(wrapped))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryable(t *testing.T) {
	t.Run("TimeoutIsRetryable", func(t *testing.T) {
		assert.True(t, Retryable(timeoutErr{}))
	})
	t.Run("CanceledIsNot", func(t *testing.T) {
		assert.False(t, Retryable(context.Canceled))
	})
	t.Run("TransientKindIs", func(t *testing.T) {
		assert.True(t, Retryable(NewCrawlError(KindTransient, "u", errors.New("503"))))
	})
	t.Run("PermanentKindIsNot", func(t *testing.T) {
		assert.False(t, Retryable(NewCrawlError(KindPermanent, "u", errors.New("404"))))
	})
	t.Run("DecompressionIsNot", func(t *testing.T) {
		assert.False(t, Retryable(NewCrawlError(KindDecompression, "u", errors.New("bad gzip"))))
	})
	t.Run("NilIsNot", func(t *testing.T) {
		assert.False(t, Retryable(nil))
	})
}

func TestRetryPolicy(t *testing.T) {
	p := NewRetryPolicy(2)
	transient := NewCrawlError(KindTransient, "u", errors.New("503"))

	assert.True(t, p.ShouldRetry(transient, 0))
	assert.True(t, p.ShouldRetry(transient, 1))
	assert.False(t, p.ShouldRetry(transient, 2))
	assert.False(t, p.ShouldRetry(NewCrawlError(KindPermanent, "u", nil), 0))

	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}
