package intercept

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/roach88/precedent-offline/internal/policy"
)

// maxQueuedBody bounds the request body the proxy buffers for queueing.
// Larger bodies are forwarded but never queued.
const maxQueuedBody = 1 << 20

// ReasonTooLarge is the fallback reason for an offline mutation whose body
// exceeds maxQueuedBody.
const ReasonTooLarge = "too_large"

type bodyKey struct{}

// readCloser reads from a replayed prefix and closes the original body.
type readCloser struct {
	io.Reader
	io.Closer
}

// KindResolver maps a request path to a pending action kind.
type KindResolver func(path string) (kind string, ok bool)

// Proxy is the edge handler. It forwards application requests to the
// origin through the interceptor and queues mutations that cannot be
// delivered.
type Proxy struct {
	ic     *Interceptor
	outbox *Outbox
	kinds  KindResolver
	logger *slog.Logger
	rp     *httputil.ReverseProxy
}

// NewProxy creates the edge handler. A nil outbox runs without queueing,
// which is how the proxy degrades when the durable store is unavailable.
func NewProxy(ic *Interceptor, outbox *Outbox, kinds KindResolver, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	if kinds == nil {
		kinds = func(string) (string, bool) { return "", false }
	}
	p := &Proxy{
		ic:     ic,
		outbox: outbox,
		kinds:  kinds,
		logger: logger,
	}

	target := &url.URL{Scheme: ic.origin.Scheme, Host: ic.origin.Host}
	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = ""
		},
		Transport:    ic,
		ErrorHandler: p.handleError,
	}
	return p
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.outbox != nil && isMutation(r.Method) && Classify(r, p.ic.apiPrefix) == ClassAPI {
		if _, ok := p.kinds(r.URL.Path); ok && r.Body != nil {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxQueuedBody+1))
			if err != nil {
				_ = r.Body.Close()
				http.Error(w, "read request body", http.StatusBadRequest)
				return
			}
			if len(body) > maxQueuedBody {
				// Too large to queue: forward the whole body untouched.
				r.Body = readCloser{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
			} else {
				_ = r.Body.Close()
				r.Body = io.NopCloser(bytes.NewReader(body))
				r.ContentLength = int64(len(body))
				r = r.WithContext(context.WithValue(r.Context(), bodyKey{}, body))
			}
		}
	}
	p.rp.ServeHTTP(w, r)
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	class := Classify(r, p.ic.apiPrefix)

	if policy.IsNetworkError(err) && isMutation(r.Method) && class == ClassAPI && p.outbox != nil {
		if kind, ok := p.kinds(r.URL.Path); ok {
			body, buffered := r.Context().Value(bodyKey{}).([]byte)
			if !buffered {
				p.logger.Warn("mutation too large to queue",
					"kind", kind,
					"path", r.URL.Path,
				)
				writeJSON(w, http.StatusRequestEntityTooLarge, policy.OfflinePayload{
					Error:   "offline",
					Reason:  ReasonTooLarge,
					Message: "The request is too large to save for later delivery.",
					Offline: true,
				})
				return
			}
			action, qerr := p.outbox.Queue(r.Context(), kind, body)
			if qerr == nil {
				writeJSON(w, http.StatusAccepted, Result{Queued: true, ID: action.ID, Kind: kind})
				return
			}
			p.logger.Error("queue mutation failed",
				"kind", kind,
				"path", r.URL.Path,
				"error", qerr,
			)
		}
	}

	if errors.Is(err, context.Canceled) {
		return
	}

	p.logger.Warn("proxy request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"class", class.String(),
		"error", err,
	)
	if class == ClassAPI {
		resp := policy.APIFallback.Respond(r)
		defer resp.Body.Close()
		for k, v := range resp.Header {
			w.Header()[k] = v
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return
	}
	w.WriteHeader(http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
