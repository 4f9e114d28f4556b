package intercept

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/precedent-offline/internal/policy"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		navigate bool
		want     Class
	}{
		{"api", "/api/v1/cases/2023-0001", false, ClassAPI},
		{"api wins over navigate", "/api/v1/cases", true, ClassAPI},
		{"api prefix root", "/api/v1", false, ClassAPI},
		{"segment boundary", "/api/v10/cases", false, ClassStatic},
		{"navigation", "/cases/2023-0001", true, ClassNavigation},
		{"static asset", "/_next/static/chunks/main.js", false, ClassStatic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "https://precedent.test"+tt.path, nil)
			if tt.navigate {
				req.Header.Set("Sec-Fetch-Mode", "navigate")
			}
			assert.Equal(t, tt.want, Classify(req, "/api/v1"))
		})
	}
}

func TestInterceptor_ForeignOriginPassesThrough(t *testing.T) {
	f := newFixture(t)
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tiles"))
	}))
	defer foreign.Close()

	client := &http.Client{Transport: f.ic}
	resp, err := client.Get(foreign.URL + "/api/v1/wards")
	require.NoError(t, err)
	assert.Equal(t, "tiles", readAll(t, resp.Body))

	cache, err := f.store.OpenCache(context.Background(), f.cfg.Generation)
	require.NoError(t, err)
	keys, err := cache.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys, "foreign responses are never cached")
}

func TestInterceptor_OfflineAPIServesLastKnownGood(t *testing.T) {
	f := newFixture(t)
	client := &http.Client{Transport: f.ic}

	resp, err := client.Get(f.origin.srv.URL + "/api/v1/wards")
	require.NoError(t, err)
	live := readAll(t, resp.Body)

	f.network.setDown(true)
	resp, err = client.Get(f.origin.srv.URL + "/api/v1/wards")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get(policy.CacheHeader))
	assert.Equal(t, live, readAll(t, resp.Body))
}

func TestInterceptor_OfflineNavigationFallsBackToInlineDocument(t *testing.T) {
	f := newFixture(t)
	f.network.setDown(true)

	req, err := http.NewRequest(http.MethodGet, f.origin.srv.URL+"/cases/2023-0001-P", nil)
	require.NoError(t, err)
	req.Header.Set("Sec-Fetch-Mode", "navigate")

	resp, err := f.ic.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, readAll(t, resp.Body), "You are offline")
}

func TestInterceptor_NavigationAlwaysCached(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.origin.srv.URL+"/cases/2023-0001-P", nil)
	require.NoError(t, err)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	resp, err := f.ic.RoundTrip(req)
	require.NoError(t, err)
	readAll(t, resp.Body)

	f.network.setDown(true)
	resp, err = f.ic.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Case</h1>", readAll(t, resp.Body))
}

func TestInterceptor_DoesNotMutateRequest(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.origin.srv.URL+"/api/v1/wards?b=2&a=1", nil)
	require.NoError(t, err)
	before := req.URL.String()
	resp, err := f.ic.RoundTrip(req)
	require.NoError(t, err)
	readAll(t, resp.Body)
	assert.Equal(t, before, req.URL.String())
}

func TestNew_InvalidOrigin(t *testing.T) {
	_, err := New(Options{Origin: "precedent.test"})
	assert.Error(t, err)
}
