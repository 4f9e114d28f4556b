package lifecycle

import (
	"bytes"
	"encoding/json"

	"github.com/roach88/precedent-offline/internal/clients"
	"github.com/roach88/precedent-offline/internal/config"
)

// PayloadKind tells how a push payload was understood.
type PayloadKind int

const (
	PlainText PayloadKind = iota
	Structured
)

func (k PayloadKind) String() string {
	if k == Structured {
		return "structured"
	}
	return "plain-text"
}

// PushMessage is the structured push payload. Every field is optional.
type PushMessage struct {
	Title   string           `json:"title"`
	Body    string           `json:"body"`
	Icon    string           `json:"icon"`
	Badge   string           `json:"badge"`
	Tag     string           `json:"tag"`
	Data    map[string]any   `json:"data"`
	Actions []clients.Action `json:"actions"`
}

// Payload is a push payload resolved once into one of two forms.
type Payload struct {
	Kind    PayloadKind
	Message PushMessage
	Text    string
}

// ParsePush reads a JSON object payload as Structured and anything else,
// including an empty payload, as PlainText.
func ParsePush(data []byte) Payload {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var msg PushMessage
		if err := json.Unmarshal(trimmed, &msg); err == nil {
			return Payload{Kind: Structured, Message: msg}
		}
	}
	return Payload{Kind: PlainText, Text: string(trimmed)}
}

// BuildNotification fills the notification from p, taking every missing
// field from defaults.
func BuildNotification(p Payload, defaults config.Notification) clients.Notification {
	n := clients.Notification{
		Title: defaults.Title,
		Body:  defaults.Body,
		Icon:  defaults.Icon,
		Badge: defaults.Badge,
		URL:   defaults.URL,
	}

	if p.Kind == PlainText {
		if p.Text != "" {
			n.Body = p.Text
		}
		return n
	}

	m := p.Message
	n.Title = orDefault(m.Title, n.Title)
	n.Body = orDefault(m.Body, n.Body)
	n.Icon = orDefault(m.Icon, n.Icon)
	n.Badge = orDefault(m.Badge, n.Badge)
	n.Tag = m.Tag
	n.Actions = m.Actions
	n.Data = m.Data
	if url, ok := m.Data["url"].(string); ok && url != "" {
		n.URL = url
	}
	return n
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
