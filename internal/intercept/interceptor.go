package intercept

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/roach88/precedent-offline/internal/policy"
)

// Options configures an Interceptor.
type Options struct {
	// Origin is the scheme and host the interceptor owns.
	Origin string

	APIPrefix string

	// Cache backs every strategy. Nil runs network-only.
	Cache policy.Cache

	// CacheableAPI lists API path prefixes whose GET responses are cached.
	CacheableAPI []string

	// OfflineDocument is the origin path of the precached offline page.
	OfflineDocument string

	// Network performs real requests. Nil means http.DefaultTransport.
	Network http.RoundTripper

	Logger *slog.Logger
}

// Interceptor applies one caching strategy per same-origin request.
type Interceptor struct {
	origin     *url.URL
	apiPrefix  string
	network    http.RoundTripper
	strategies map[Class]policy.Strategy
	logger     *slog.Logger
}

// New builds an Interceptor from opts.
func New(opts Options) (*Interceptor, error) {
	origin, err := url.Parse(opts.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("interceptor: invalid origin %q", opts.Origin)
	}

	network := opts.Network
	if network == nil {
		network = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := opts.Cache
	if cache == nil {
		cache = policy.NoCache{}
	}

	var docKey string
	if opts.OfflineDocument != "" {
		docKey, err = policy.KeyFor(strings.TrimRight(opts.Origin, "/") + opts.OfflineDocument)
		if err != nil {
			return nil, fmt.Errorf("interceptor: offline document: %w", err)
		}
	}

	allow := append([]string(nil), opts.CacheableAPI...)
	cacheable := func(req *http.Request) bool {
		for _, prefix := range allow {
			if hasPathPrefix(req.URL.Path, prefix) {
				return true
			}
		}
		return false
	}

	return &Interceptor{
		origin:    origin,
		apiPrefix: opts.APIPrefix,
		network:   network,
		strategies: map[Class]policy.Strategy{
			ClassAPI: &policy.NetworkFirst{
				Cache:     cache,
				Cacheable: cacheable,
				Fallback:  policy.APIFallback,
				Logger:    logger,
			},
			ClassNavigation: &policy.NetworkFirst{
				Cache: cache,
				Fallback: &policy.DocumentFallback{
					Cache:       cache,
					DocumentKey: docKey,
					Logger:      logger,
				},
				Logger: logger,
			},
			ClassStatic: &policy.CacheFirst{
				Cache:  cache,
				Logger: logger,
			},
		},
		logger: logger,
	}, nil
}

// Origin returns the owned origin without a trailing slash.
func (i *Interceptor) Origin() string {
	return i.origin.Scheme + "://" + i.origin.Host
}

// SameOrigin reports whether req targets the owned origin.
func (i *Interceptor) SameOrigin(req *http.Request) bool {
	return strings.EqualFold(req.URL.Scheme, i.origin.Scheme) &&
		strings.EqualFold(req.URL.Host, i.origin.Host)
}

// Classify returns the route class of req.
func (i *Interceptor) Classify(req *http.Request) Class {
	return Classify(req, i.apiPrefix)
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if !i.SameOrigin(req) {
		return i.network.RoundTrip(req)
	}

	class := i.Classify(req)
	strategy := i.strategies[class]
	resp, err := strategy.Respond(req, i.network)
	if err != nil {
		i.logger.Debug("intercepted request failed",
			"method", req.Method,
			"url", req.URL.String(),
			"class", class.String(),
			"strategy", strategy.Name(),
			"error", err,
		)
		return nil, err
	}

	i.logger.Debug("intercepted request",
		"method", req.Method,
		"url", req.URL.String(),
		"class", class.String(),
		"strategy", strategy.Name(),
		"status", resp.StatusCode,
		"cache", resp.Header.Get(policy.CacheHeader),
	)
	return resp, nil
}
