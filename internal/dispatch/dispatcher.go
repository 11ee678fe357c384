// Package dispatch forwards the newly observed items of each refresh cycle
// to the configured publishers.
package dispatch

import (
	"context"
	"time"

	"github.com/lumenlabs/feedstream/internal/domain"
	"github.com/lumenlabs/feedstream/internal/logger"
	"github.com/lumenlabs/feedstream/internal/state"
	"github.com/lumenlabs/feedstream/pkg/publishers"
)

// Dispatcher diffs each cycle's items against the seen-item journal and
// publishes only the fresh ones. Publisher failures are logged, never
// propagated; a lost delivery is retried naturally when the sink recovers
// only if the item has not been journaled, so delivery is at-most-once.
type Dispatcher struct {
	store *state.Store
	pubs  []publishers.Publisher
	log   logger.Logger
}

// New builds a Dispatcher over the journal and publisher set.
func New(store *state.Store, pubs []publishers.Publisher, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Dispatcher{store: store, pubs: pubs, log: log}
}

// Dispatch journals the cycle's items and fans the new ones out to every
// publisher.
func (d *Dispatcher) Dispatch(ctx context.Context, items []domain.Item) {
	d.markSources(items)

	fresh, err := d.store.MarkNew(items)
	if err != nil {
		d.log.ErrorObj("seen-item journal update failed", "dispatch_journal_error", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if len(fresh) == 0 || len(d.pubs) == 0 {
		return
	}

	observedAt := time.Now().UTC()
	delivered, failed := 0, 0

	for _, item := range fresh {
		evt := eventFrom(item, observedAt)
		for _, pub := range d.pubs {
			if err := pub.Publish(ctx, evt); err != nil {
				failed++
				d.log.WarnObj("publisher delivery failed", "dispatch_publish_error", map[string]any{
					"publisher_id": pub.ID(),
					"item_id":      item.ID,
					"error":        err.Error(),
				})
				continue
			}
			delivered++
		}
	}

	d.log.InfoObj("cycle items dispatched", "dispatch_complete", map[string]any{
		"new_items": len(fresh),
		"delivered": delivered,
		"failed":    failed,
	})
}

// markSources records a refresh mark for every source that contributed at
// least one item to the cycle.
func (d *Dispatcher) markSources(items []domain.Item) {
	now := time.Now().UTC()
	marked := make(map[string]struct{})
	for _, item := range items {
		if _, done := marked[item.SourceID]; done || item.SourceID == "" {
			continue
		}
		marked[item.SourceID] = struct{}{}
		if err := d.store.MarkSourceRefreshed(item.SourceID, now); err != nil {
			d.log.WarnObj("source mark update failed", "dispatch_source_mark_error", map[string]any{
				"source_id": item.SourceID,
				"error":     err.Error(),
			})
		}
	}
}

func eventFrom(item domain.Item, observedAt time.Time) publishers.ItemEvent {
	return publishers.ItemEvent{
		SourceID:    item.SourceID,
		Category:    item.Category,
		ItemID:      item.ID,
		Title:       item.Title,
		Link:        item.Link,
		Summary:     item.Summary,
		ImageURL:    item.ImageURL,
		PublishedAt: item.PublishedAt,
		ObservedAt:  observedAt,
	}
}
