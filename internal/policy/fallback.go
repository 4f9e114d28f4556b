package policy

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// Fallback synthesizes a response when neither network nor cache can answer
// a GET request.
type Fallback interface {
	Respond(req *http.Request) *http.Response
}

// FallbackFunc adapts a function to the Fallback interface.
type FallbackFunc func(req *http.Request) *http.Response

// Respond calls f(req).
func (f FallbackFunc) Respond(req *http.Request) *http.Response {
	return f(req)
}

// Reasons carried in the API fallback payload.
const (
	ReasonCacheMiss = "cache_miss"
)

// OfflinePayload is the machine-readable body of the API fallback.
type OfflinePayload struct {
	Error   string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Offline bool   `json:"offline"`
}

// offlineMessage is shown by callers rendering the API fallback.
const offlineMessage = "You are offline and this data is not available in the offline cache."

// offlineHTML is the last-resort navigation document.
const offlineHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Offline - Planning Precedent AI</title>
</head>
<body>
<main>
<h1>You are offline</h1>
<p>This page has not been saved for offline use. Check your connection and try again.</p>
</main>
</body>
</html>
`

// APIFallback answers API reads with a 503 JSON payload the caller can
// render as "you are offline".
var APIFallback Fallback = FallbackFunc(func(req *http.Request) *http.Response {
	body, _ := json.Marshal(OfflinePayload{
		Error:   "offline",
		Reason:  ReasonCacheMiss,
		Message: offlineMessage,
		Offline: true,
	})
	return synthesize(req, http.StatusServiceUnavailable, "application/json", body)
})

// InlineFallback returns the minimal inline HTML document with status 503.
var InlineFallback Fallback = FallbackFunc(func(req *http.Request) *http.Response {
	return synthesize(req, http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(offlineHTML))
})

// DocumentFallback serves the precached offline document for navigations,
// and the inline document when even that is missing from the cache.
type DocumentFallback struct {
	Cache Cache

	// DocumentKey is the cache key of the offline document.
	DocumentKey string

	Logger *slog.Logger
}

// Respond implements Fallback.
func (f *DocumentFallback) Respond(req *http.Request) *http.Response {
	if f.Cache != nil && f.DocumentKey != "" {
		cached, ok, err := f.Cache.Match(req.Context(), f.DocumentKey)
		if err != nil {
			loggerOr(f.Logger).Warn("offline document lookup failed",
				"key", f.DocumentKey,
				"error", err,
			)
		}
		if ok {
			return fromCache(req, cached)
		}
	}
	return InlineFallback.Respond(req)
}

func synthesize(req *http.Request, status int, contentType string, body []byte) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
