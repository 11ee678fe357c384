// Package publishers delivers newly observed feed items to configured
// downstream sinks: generic HTTP endpoints or cloud queues.
package publishers

import (
	"context"
	"time"
)

// ItemEvent is the wire representation of one newly observed item.
type ItemEvent struct {
	SourceID    string    `json:"source_id"`
	Category    string    `json:"category"`
	ItemID      string    `json:"item_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Publisher delivers item events to one configured sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt ItemEvent) error
}

// Logger is the minimal logging surface publishers need. It matches the
// application logger so either can be passed directly.
type Logger interface {
	DebugObj(msg, event string, fields map[string]any)
	InfoObj(msg, event string, fields map[string]any)
	WarnObj(msg, event string, fields map[string]any)
	ErrorObj(msg, event string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) DebugObj(string, string, map[string]any) {}
func (nopLogger) InfoObj(string, string, map[string]any)  {}
func (nopLogger) WarnObj(string, string, map[string]any)  {}
func (nopLogger) ErrorObj(string, string, map[string]any) {}

// ensureLogger guards against nil loggers at every construction site.
func ensureLogger(log Logger) Logger {
	if log == nil {
		return nopLogger{}
	}
	return log
}
