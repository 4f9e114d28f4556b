// Package clients tracks the application instances (open tabs) connected
// to the edge and delivers notifications and window commands to them.
//
// Instances connect over WebSocket, announce the URL they display, and
// report focus and install-prompt changes. The hub answers with focus,
// open, claim, notification, and dismiss commands.
package clients

import (
	"errors"
	"net/url"
	"time"
)

// Path is where the hub is mounted on the edge server.
const Path = "/_offline/clients"

// ErrNoClient is returned when a command has no connected instance to act on.
var ErrNoClient = errors.New("no connected client")

// Client is a snapshot of one connected application instance.
type Client struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Generation string    `json:"generation,omitempty"`
	Focused    bool      `json:"focused"`
	LastSeen   time.Time `json:"last_seen"`
}

// Action is a button offered on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Notification is a displayed system notification.
type Notification struct {
	Tag     string         `json:"tag"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Icon    string         `json:"icon"`
	Badge   string         `json:"badge"`
	URL     string         `json:"url"`
	Actions []Action       `json:"actions,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	ShownAt time.Time      `json:"shown_at"`
}

// Message is the JSON frame exchanged with instances.
//
// Instance to hub: hello, navigate, focus, install-prompt,
// notification-click. Hub to instance: welcome, focus, open, claim,
// notification, dismiss, error.
type Message struct {
	Type         string        `json:"type"`
	ID           string        `json:"id,omitempty"`
	URL          string        `json:"url,omitempty"`
	Generation   string        `json:"generation,omitempty"`
	Tag          string        `json:"tag,omitempty"`
	Action       string        `json:"action,omitempty"`
	Available    *bool         `json:"available,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// SameTarget reports whether two URLs address the same document.
// Relative URLs compare by path and query only.
func SameTarget(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	if ua.Host != "" && ub.Host != "" && ua.Host != ub.Host {
		return false
	}
	return pathOf(ua) == pathOf(ub) && ua.RawQuery == ub.RawQuery
}

func pathOf(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
