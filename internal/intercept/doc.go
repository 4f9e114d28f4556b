// Package intercept routes every application request through exactly one
// caching strategy.
//
// Interceptor is an http.RoundTripper. Requests for the configured origin
// are classified as API, Navigation, or Static and answered by the matching
// policy.Strategy. Requests for any other origin pass straight to the
// network.
//
// Outbox is the application-facing mutation path: it posts through the
// interceptor and, when the origin is unreachable, queues the mutation in
// the durable store for later replay. Proxy is the edge http.Handler the
// application shell talks to.
package intercept
