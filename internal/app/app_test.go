package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p4blo4p/sitemap-hunter/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Crawl: config.CrawlConfig{
			Concurrency:             1,
			MaxRecursionDepth:       1,
			CircuitFailureThreshold: 5,
		},
		HTTP:   config.HTTPConfig{FetchTimeoutSeconds: 10},
		State:  config.StateConfig{Provider: "memory"},
		Report: config.ReportConfig{Publisher: "memory"},
	}
}

func TestNewWithMemoryBackends(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), baseConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Publisher)
	assert.NotNil(t, a.Logger)
}

func TestNewWithFilesystemStore(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.State.Provider = "fs"
	cfg.State.BaseDir = t.TempDir()
	cfg.Report.Publisher = "none"

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Store)
	assert.Nil(t, a.Publisher)
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t)
	cfg.State.Provider = "redis"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)

	cfg = baseConfig(t)
	cfg.Report.Publisher = "kafka"
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
}
