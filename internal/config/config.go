// Package config loads the offline edge configuration.
//
// Configuration is a YAML file validated against an embedded CUE schema
// before it is decoded. Fields missing from the file keep the values from
// Default.
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the complete edge configuration.
type Config struct {
	// Origin is the application origin (scheme and host) the edge fronts.
	Origin string `yaml:"origin"`

	// APIPrefix classifies requests as API calls.
	APIPrefix string `yaml:"api_prefix"`

	// Generation names the current cache generation.
	Generation string `yaml:"generation"`

	Database string `yaml:"database"`
	Listen   string `yaml:"listen"`

	// Remote is the base URL queued actions are replayed to.
	// Empty means Origin.
	Remote string `yaml:"remote"`

	// CacheableAPI lists API path prefixes whose GET responses are cached.
	CacheableAPI []string `yaml:"cacheable_api"`

	// Manifest lists the same-origin paths precached at install.
	Manifest []string `yaml:"manifest"`

	OfflineDocument string `yaml:"offline_document"`

	// Kinds maps each pending action kind to its replay endpoint.
	Kinds map[string]string `yaml:"kinds"`

	Notification Notification `yaml:"notification"`
	Probe        Probe        `yaml:"probe"`
}

// Notification holds the values used when a push payload omits a field.
type Notification struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
	Icon  string `yaml:"icon"`
	Badge string `yaml:"badge"`
	URL   string `yaml:"url"`
}

// Probe configures the connectivity probe.
type Probe struct {
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Pending action kinds known to the application.
const (
	KindSavedCaseCreate     = "saved-case-create"
	KindSearchHistoryAppend = "search-history-append"
)

// Default returns the configuration for the planning precedent application.
func Default() Config {
	return Config{
		Origin:     "http://localhost:3000",
		APIPrefix:  "/api/v1",
		Generation: "precedent-v1",
		Database:   "precedent-offline.db",
		Listen:     "127.0.0.1:8787",
		CacheableAPI: []string{
			"/api/v1/cases",
			"/api/v1/saved-cases",
			"/api/v1/search-history",
			"/api/v1/stats",
			"/api/v1/wards",
		},
		Manifest: []string{
			"/",
			"/offline.html",
			"/manifest.json",
			"/icons/icon-192x192.png",
			"/icons/icon-512x512.png",
		},
		OfflineDocument: "/offline.html",
		Kinds: map[string]string{
			KindSavedCaseCreate:     "/api/v1/saved-cases",
			KindSearchHistoryAppend: "/api/v1/search-history",
		},
		Notification: Notification{
			Title: "Planning Precedent AI",
			Body:  "You have a new notification",
			Icon:  "/icons/icon-192x192.png",
			Badge: "/icons/badge-72x72.png",
			URL:   "/",
		},
		Probe: Probe{
			Path:     "/api/v1/health",
			Interval: 30 * time.Second,
			Timeout:  5 * time.Second,
		},
	}
}

// Load reads, validates, and decodes the YAML file at path over Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates and decodes YAML config data. filename is used in
// error positions only.
func Parse(filename string, data []byte) (Config, error) {
	if err := validateSchema(filename, data); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field rules the schema cannot express.
func (c Config) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &Error{Field: "origin", Message: fmt.Sprintf("not an absolute origin: %q", c.Origin)}
	}
	if c.Generation == "" {
		return &Error{Field: "generation", Message: "generation is required"}
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return &Error{Field: "api_prefix", Message: "must start with /"}
	}
	for _, kind := range c.KindNames() {
		if !strings.HasPrefix(c.Kinds[kind], c.APIPrefix) {
			return &Error{
				Field:   "kinds." + kind,
				Message: fmt.Sprintf("endpoint %s is outside %s", c.Kinds[kind], c.APIPrefix),
			}
		}
	}
	if c.Probe.Interval < 0 || c.Probe.Timeout < 0 {
		return &Error{Field: "probe", Message: "durations must not be negative"}
	}
	return nil
}

// RemoteBase returns the base URL replays are sent to.
func (c Config) RemoteBase() string {
	if c.Remote != "" {
		return c.Remote
	}
	return c.Origin
}

// KindNames returns the configured kinds sorted by name.
func (c Config) KindNames() []string {
	names := make([]string, 0, len(c.Kinds))
	for k := range c.Kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// KindForPath returns the kind whose endpoint is path.
func (c Config) KindForPath(path string) (string, bool) {
	for _, kind := range c.KindNames() {
		if c.Kinds[kind] == path {
			return kind, true
		}
	}
	return "", false
}

// Error is a configuration error, positioned when the schema rejected it.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return formatCUEError(err)
	}
	v := ctx.BuildFile(file)
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := strings.Join(first.Path(), ".")
	if field == "" {
		field = "config"
	}
	msg := first.Error()
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		// Prefer the position inside the YAML file over the schema.
		pos := positions[0]
		for _, p := range positions {
			if p.Filename() != "schema.cue" {
				pos = p
				break
			}
		}
		return &Error{Field: field, Message: msg, Pos: pos}
	}
	return &Error{Field: field, Message: msg}
}
