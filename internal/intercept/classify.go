package intercept

import (
	"net/http"
	"strings"
)

// Class is the route class of an intercepted request.
type Class int

const (
	// ClassStatic is anything that is neither API nor navigation.
	ClassStatic Class = iota
	// ClassAPI is a request under the API prefix.
	ClassAPI
	// ClassNavigation is a top-level document load.
	ClassNavigation
)

func (c Class) String() string {
	switch c {
	case ClassAPI:
		return "api"
	case ClassNavigation:
		return "navigation"
	default:
		return "static"
	}
}

// Classify returns the route class of req. The API prefix wins over the
// navigate fetch mode.
func Classify(req *http.Request, apiPrefix string) Class {
	if hasPathPrefix(req.URL.Path, apiPrefix) {
		return ClassAPI
	}
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return ClassNavigation
	}
	return ClassStatic
}

// hasPathPrefix matches whole path segments, so "/api/v1" matches
// "/api/v1/cases" but not "/api/v10".
func hasPathPrefix(path, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	prefix = strings.TrimRight(prefix, "/")
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// isMutation reports whether method changes server state.
func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
