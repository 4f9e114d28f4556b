package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Mutation is a request body received by an Origin.
type Mutation struct {
	Path           string          `json:"path"`
	Body           json.RawMessage `json:"body"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// Origin is a fake application origin. It serves fixed GET bodies, records
// every mutation, and can be told to reject mutations to a path.
type Origin struct {
	*httptest.Server

	mu        sync.Mutex
	pages     map[string]string
	mutations []Mutation
	reject    map[string]int
}

// NewOrigin starts an origin serving pages (path to body). Paths not in
// pages answer 404. The health endpoint always answers 200.
func NewOrigin(pages map[string]string) *Origin {
	o := &Origin{pages: map[string]string{}, reject: map[string]int{}}
	for path, body := range pages {
		o.pages[path] = body
	}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	return o
}

// SetPage replaces the body served for path.
func (o *Origin) SetPage(path, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pages[path] = body
}

// Reject makes mutations to path answer status. Status 0 accepts again.
func (o *Origin) Reject(path string, status int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if status == 0 {
		delete(o.reject, path)
		return
	}
	o.reject[path] = status
}

// Mutations returns every accepted mutation in arrival order.
func (o *Origin) Mutations() []Mutation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Mutation(nil), o.mutations...)
}

func (o *Origin) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/health") {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if r.Method == http.MethodGet {
		body, ok := o.pages[r.URL.RequestURI()]
		if !ok {
			body, ok = o.pages[r.URL.Path]
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType(r.URL.Path))
		_, _ = io.WriteString(w, body)
		return
	}

	if status, ok := o.reject[r.URL.Path]; ok {
		http.Error(w, fmt.Sprintf(`{"detail":"rejected with %d"}`, status), status)
		return
	}

	body, _ := io.ReadAll(r.Body)
	o.mutations = append(o.mutations, Mutation{
		Path:           r.URL.Path,
		Body:           json.RawMessage(body),
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = fmt.Fprintf(w, `{"id":%d}`, len(o.mutations))
}

func contentType(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/"), strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".js"):
		return "text/javascript"
	case strings.HasSuffix(path, ".css"):
		return "text/css"
	default:
		return "text/html; charset=utf-8"
	}
}

// ManifestPages returns placeholder bodies for every manifest path.
func ManifestPages(manifest []string) map[string]string {
	pages := make(map[string]string, len(manifest))
	for _, p := range manifest {
		pages[p] = "asset " + p
	}
	return pages
}
