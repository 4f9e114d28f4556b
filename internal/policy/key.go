package policy

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key returns the normalized request identity used as the cache key:
// the method followed by the absolute URL. Scheme and host are lowercased,
// the path is NFC-normalized and, for GET, query parameters are included in
// sorted order. Fragments are never part of the key.
func Key(req *http.Request) string {
	return req.Method + " " + normalizeURL(req)
}

// KeyFor returns the GET key for an absolute URL string.
func KeyFor(rawURL string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	return Key(req), nil
}

func normalizeURL(req *http.Request) string {
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	scheme := req.URL.Scheme
	if scheme == "" {
		scheme = "http"
		if req.TLS != nil {
			scheme = "https"
		}
	}

	u := url.URL{
		Scheme: strings.ToLower(scheme),
		Host:   strings.ToLower(host),
		Path:   norm.NFC.String(req.URL.Path),
	}
	if u.Path == "" {
		u.Path = "/"
	}
	if req.Method == http.MethodGet && req.URL.RawQuery != "" {
		u.RawQuery = req.URL.Query().Encode()
	}
	return u.String()
}
