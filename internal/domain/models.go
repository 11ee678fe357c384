package domain

import "time"

// Domain contains the canonical models shared across the pipeline.

// Source is one configured feed subscription. Sources are created by the
// catalog and consumed read-only by the aggregator.
type Source struct {
	ID            string
	Title         string
	URL           string
	Category      string
	RelayRequired bool
}

// Item is one normalized article derived from a feed entry. The whole item
// set is rebuilt from scratch on every refresh cycle.
type Item struct {
	ID          string
	Title       string
	Link        string
	Summary     string
	FullContent string
	ImageURL    string
	PublishedAt time.Time
	// DateSynthesized marks items whose feed entry carried no usable
	// timestamp, so PublishedAt is the fetch time of the cycle that first
	// saw them and their sort position drifts between cycles.
	DateSynthesized bool
	Category        string
	SourceID        string
}

// RefreshState reports whether a refresh cycle is in flight.
type RefreshState int

const (
	StateIdle RefreshState = iota
	StateRunning
)

func (s RefreshState) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// AggregationResult is the merged output of one refresh cycle. Items are
// ordered newest first; ties keep the source iteration order of the cycle.
type AggregationResult struct {
	Items            []Item
	RefreshStartedAt time.Time
	State            RefreshState
}
