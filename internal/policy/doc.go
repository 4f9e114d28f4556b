// Package policy implements the caching strategies applied to intercepted
// requests.
//
// Two strategies exist. NetworkFirst serves API and navigation requests: it
// prefers a live response, writes successful GETs through to the cache, and
// falls back to the last stored copy (no freshness check) or a synthesized
// offline response when the network is gone. CacheFirst serves static
// assets, which are immutable within one cache generation.
//
// Only 2xx GET responses are ever written to a cache. Response bodies are
// buffered before they are stored so the caller always receives an unread
// body.
package policy
