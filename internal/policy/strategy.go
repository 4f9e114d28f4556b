package policy

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/roach88/precedent-offline/internal/store"
)

// CacheHeader marks responses served from the offline cache.
const CacheHeader = "X-Offline-Cache"

// Strategy answers one intercepted request using network and cache.
type Strategy interface {
	Name() string
	Respond(req *http.Request, network http.RoundTripper) (*http.Response, error)
}

// NetworkFirst tries the network and falls back to the cache on failure.
type NetworkFirst struct {
	Cache Cache

	// Cacheable decides whether a successful GET is written to the cache.
	// Nil means every successful GET is cached.
	Cacheable func(req *http.Request) bool

	// Fallback answers GETs that neither network nor cache can serve.
	Fallback Fallback

	Logger *slog.Logger
}

// Name implements Strategy.
func (s *NetworkFirst) Name() string { return "network-first" }

// Respond implements Strategy.
//
// On network failure a GET is answered from the cache without any freshness
// check, then from the fallback. Any other method returns the network error
// unchanged so the caller can queue the mutation.
func (s *NetworkFirst) Respond(req *http.Request, network http.RoundTripper) (*http.Response, error) {
	resp, err := network.RoundTrip(req)
	if err == nil {
		if req.Method == http.MethodGet && (s.Cacheable == nil || s.Cacheable(req)) {
			return writeThrough(req, resp, s.Cache, s.Logger)
		}
		return resp, nil
	}

	if req.Method != http.MethodGet {
		return nil, NetworkError(req.URL.String(), err)
	}

	log := loggerOr(s.Logger)
	if cached, ok := match(req, s.Cache, log); ok {
		log.Debug("network failed, served from cache",
			"url", req.URL.String(),
			"captured_at", cached.CapturedAt,
		)
		return fromCache(req, cached), nil
	}

	if s.Fallback == nil {
		return nil, &OfflineError{
			Code:    ErrCodeCacheMiss,
			Message: "no cached response and no fallback",
			URL:     req.URL.String(),
			Err:     err,
		}
	}
	log.Debug("network failed, cache miss, serving fallback", "url", req.URL.String())
	return s.Fallback.Respond(req), nil
}

// CacheFirst serves from the cache and only goes to the network on a miss.
type CacheFirst struct {
	Cache  Cache
	Logger *slog.Logger
}

// Name implements Strategy.
func (s *CacheFirst) Name() string { return "cache-first" }

// Respond implements Strategy. Network failures on a miss are returned to
// the caller; there is no synthesized fallback for static assets.
func (s *CacheFirst) Respond(req *http.Request, network http.RoundTripper) (*http.Response, error) {
	if req.Method == http.MethodGet {
		if cached, ok := match(req, s.Cache, loggerOr(s.Logger)); ok {
			return fromCache(req, cached), nil
		}
	}

	resp, err := network.RoundTrip(req)
	if err != nil {
		return nil, NetworkError(req.URL.String(), err)
	}
	if req.Method != http.MethodGet {
		return resp, nil
	}
	return writeThrough(req, resp, s.Cache, s.Logger)
}

// match looks the request up, treating store errors as a miss.
func match(req *http.Request, c Cache, log *slog.Logger) (store.CachedResponse, bool) {
	if c == nil || req.Method != http.MethodGet {
		return store.CachedResponse{}, false
	}
	key := Key(req)
	cached, ok, err := c.Match(req.Context(), key)
	if err != nil {
		log.Warn("cache lookup failed, treating as miss",
			"key", key,
			"error", err,
		)
		return store.CachedResponse{}, false
	}
	return cached, ok
}

// writeThrough writes a successful GET response through to the cache and returns
// a response whose body has not been read. Non-2xx responses pass through.
func writeThrough(req *http.Request, resp *http.Response, c Cache, logger *slog.Logger) (*http.Response, error) {
	if c == nil || req.Method != http.MethodGet || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, NetworkError(req.URL.String(), fmt.Errorf("read body: %w", err))
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	entry := store.CachedResponse{
		Key:    Key(req),
		Method: req.Method,
		URL:    req.URL.String(),
		Status: resp.StatusCode,
		Header: store.HeaderSubset(resp.Header),
		Body:   body,
	}
	if err := c.Put(req.Context(), entry); err != nil {
		loggerOr(logger).Warn("cache write failed",
			"key", entry.Key,
			"error", err,
		)
	}
	return resp, nil
}

// fromCache builds a fresh response from a cached entry.
func fromCache(req *http.Request, cached store.CachedResponse) *http.Response {
	h := cached.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(CacheHeader, "hit")
	h.Set("Content-Length", strconv.Itoa(len(cached.Body)))

	body := append([]byte(nil), cached.Body...)
	return &http.Response{
		Status:        strconv.Itoa(cached.Status) + " " + http.StatusText(cached.Status),
		StatusCode:    cached.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
