package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/api/v1/saved-cases", cfg.Kinds[KindSavedCaseCreate])
	assert.Equal(t, "/api/v1/search-history", cfg.Kinds[KindSearchHistoryAppend])
	assert.Contains(t, cfg.Manifest, cfg.OfflineDocument)
	assert.Equal(t, cfg.Origin, cfg.RemoteBase())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	require.NoError(t, err)

	assert.Equal(t, "https://precedent.test", cfg.Origin)
	assert.Equal(t, "precedent-v2", cfg.Generation)
	assert.Equal(t, []string{"/api/v1/cases", "/api/v1/wards"}, cfg.CacheableAPI)
	assert.Equal(t, "Camden Precedents", cfg.Notification.Title)
	assert.Equal(t, 10*time.Second, cfg.Probe.Interval)

	// Untouched fields keep their defaults.
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "/api/v1/health", cfg.Probe.Path)
	assert.Equal(t, "/icons/badge-72x72.png", cfg.Notification.Badge)
}

func TestLoad_SchemaErrorHasPosition(t *testing.T) {
	_, err := Load("testdata/bad_interval.yaml")
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Field, "interval")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.yaml")
	require.Error(t, err)
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"origin with path", "origin: https://precedent.test/app\n"},
		{"relative manifest entry", "manifest: [offline.html]\n"},
		{"kind endpoint outside api prefix", "kinds:\n  saved-case-create: /saved\n"},
		{"bad kind name", "kinds:\n  Saved_Case: /api/v1/saved-cases\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("inline.yaml", []byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestKindForPath(t *testing.T) {
	cfg := Default()

	kind, ok := cfg.KindForPath("/api/v1/search-history")
	require.True(t, ok)
	assert.Equal(t, KindSearchHistoryAppend, kind)

	_, ok = cfg.KindForPath("/api/v1/export/pdf")
	assert.False(t, ok)
}
