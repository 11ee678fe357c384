// Package aggregator fans a refresh cycle out across all active sources,
// isolates per-source failures, and merges the results into one ordered
// item set.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lumenlabs/feedstream/internal/domain"
	"github.com/lumenlabs/feedstream/internal/logger"
)

const (
	defaultInterval      = 5 * time.Minute
	defaultSourceTimeout = 15 * time.Second
)

// Config tunes the aggregator. Zero values fall back to defaults.
type Config struct {
	// Interval between scheduled refresh cycles.
	Interval time.Duration
	// SourceTimeout bounds each source's fetch so one unreachable host
	// cannot stall the cycle.
	SourceTimeout time.Duration
	// OnResult, when set, receives each completed cycle's result.
	OnResult func(ctx context.Context, result domain.AggregationResult)
}

// Aggregator owns the refresh state machine and the latest merged result.
// All mutation happens under one mutex; a refresh that finds another cycle
// running is a no-op.
type Aggregator struct {
	pipeline *Pipeline
	cfg      Config
	log      logger.Logger

	mu      sync.Mutex
	running bool
	latest  domain.AggregationResult
}

// New builds an Aggregator around the per-source pipeline.
func New(pipeline *Pipeline, cfg Config, log logger.Logger) *Aggregator {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Aggregator{pipeline: pipeline, cfg: cfg, log: log}
}

// Refresh runs one full fetch-all-and-merge cycle over the active subset
// of sources. It returns an error only for a programming-level invariant
// violation (an active id with no matching source); transient per-source
// failures degrade silently to fewer items. A call made while a cycle is
// already running returns immediately without starting another.
func (a *Aggregator) Refresh(ctx context.Context, sources []domain.Source, activeIDs []string) error {
	active, err := filterActive(sources, activeIDs)
	if err != nil {
		return err
	}

	startedAt := time.Now()

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		a.log.Debug("refresh already running, skipping trigger")
		return nil
	}
	a.running = true
	a.latest.RefreshStartedAt = startedAt
	a.latest.State = domain.StateRunning
	a.mu.Unlock()

	merged := a.collectAll(ctx, active)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})

	result := domain.AggregationResult{
		Items:            merged,
		RefreshStartedAt: startedAt,
		State:            domain.StateIdle,
	}

	a.mu.Lock()
	a.latest = result
	a.running = false
	a.mu.Unlock()

	a.log.InfoObj("refresh cycle completed", "refresh_complete", map[string]any{
		"sources": len(active),
		"items":   len(merged),
		"took_ms": time.Since(startedAt).Milliseconds(),
	})

	if a.cfg.OnResult != nil {
		a.cfg.OnResult(ctx, result)
	}
	return nil
}

// collectAll launches one task per source and joins on all of them,
// success or failure, before merging in source order. Each task owns its
// own output slot so no locking is needed until the merge.
func (a *Aggregator) collectAll(ctx context.Context, sources []domain.Source) []domain.Item {
	results := make([][]domain.Item, len(sources))
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src domain.Source) {
			defer wg.Done()

			taskCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
			defer cancel()

			items, err := a.pipeline.Collect(taskCtx, src)
			if err != nil {
				a.pipeline.logFailure(src, err)
				return
			}
			results[i] = items
		}(i, src)
	}
	wg.Wait()

	var merged []domain.Item
	for _, items := range results {
		merged = append(merged, items...)
	}
	return merged
}

// Run refreshes immediately and then on every interval tick until the
// context is canceled. Scheduled triggers go through the same no-overlap
// gate as manual ones.
func (a *Aggregator) Run(ctx context.Context, sources []domain.Source, activeIDs []string) error {
	if err := a.Refresh(ctx, sources, activeIDs); err != nil {
		return err
	}

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Refresh(ctx, sources, activeIDs); err != nil {
				return err
			}
		}
	}
}

// Snapshot returns a copy of the latest aggregation result.
func (a *Aggregator) Snapshot() domain.AggregationResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.latest
	out.Items = make([]domain.Item, len(a.latest.Items))
	copy(out.Items, a.latest.Items)
	if a.running {
		out.State = domain.StateRunning
	}
	return out
}

// State reports whether a refresh cycle is currently in flight.
func (a *Aggregator) State() domain.RefreshState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return domain.StateRunning
	}
	return domain.StateIdle
}

// filterActive resolves active ids against the source list, preserving the
// order of the source list. An unknown id is an invariant violation, not a
// transient failure.
func filterActive(sources []domain.Source, activeIDs []string) ([]domain.Source, error) {
	byID := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		byID[src.ID] = struct{}{}
	}
	for _, id := range activeIDs {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("active source id %q not present in configuration", id)
		}
	}

	want := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		want[id] = struct{}{}
	}

	active := make([]domain.Source, 0, len(activeIDs))
	for _, src := range sources {
		if _, ok := want[src.ID]; ok {
			active = append(active, src)
		}
	}
	return active, nil
}
