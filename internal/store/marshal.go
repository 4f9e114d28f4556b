package store

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/golang/snappy"
)

// storedHeaders is the subset of response headers kept with a cached
// response. Hop-by-hop and per-connection headers are dropped.
var storedHeaders = []string{
	"Cache-Control",
	"Content-Language",
	"Content-Type",
	"ETag",
	"Last-Modified",
	"Vary",
}

// HeaderSubset copies the storable headers out of h.
func HeaderSubset(h http.Header) http.Header {
	out := http.Header{}
	for _, name := range storedHeaders {
		if values := h.Values(name); len(values) > 0 {
			out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
	return out
}

// marshalHeader converts the header subset to JSON TEXT with sorted keys.
func marshalHeader(h http.Header) (string, error) {
	subset := HeaderSubset(h)
	keys := make([]string, 0, len(subset))
	for k := range subset {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Go's json.Marshal sorts map keys, the explicit sort keeps the
	// slice values stable too.
	m := make(map[string][]string, len(keys))
	for _, k := range keys {
		m[k] = subset[k]
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	return string(data), nil
}

// unmarshalHeader parses header JSON TEXT.
func unmarshalHeader(data string) (http.Header, error) {
	h := http.Header{}
	if data == "" || data == "{}" {
		return h, nil
	}
	var m map[string][]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}
	for k, v := range m {
		h[http.CanonicalHeaderKey(k)] = v
	}
	return h, nil
}

// encodeBody snappy-compresses a response body for storage.
func encodeBody(body []byte) []byte {
	return snappy.Encode(nil, body)
}

// decodeBody reverses encodeBody.
func decodeBody(data []byte) ([]byte, error) {
	body, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return body, nil
}
