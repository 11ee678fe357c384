// Package enrich backfills missing item metadata by fetching the article
// page itself and reading its meta tags. It is an optional pass after a
// refresh cycle; every failure leaves the item as it was.
package enrich

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lumenlabs/feedstream/internal/domain"
	"github.com/lumenlabs/feedstream/internal/logger"
	"github.com/lumenlabs/feedstream/pkg/httpclient"
)

const (
	maxHTMLBodyBytes  = 1 << 20 // 1 MiB
	defaultMaxWorkers = 10
)

// Enricher scrapes article pages for og: metadata to fill gaps the feed
// left behind, currently the lead image and an empty summary.
type Enricher struct {
	client     httpclient.Client
	log        logger.Logger
	maxWorkers int
	delay      time.Duration
}

// New creates an Enricher. workers <= 0 falls back to the default pool
// size; delay, when positive, rate-limits page fetches globally.
func New(client httpclient.Client, workers int, delay time.Duration, log logger.Logger) *Enricher {
	if workers <= 0 {
		workers = defaultMaxWorkers
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Enricher{client: client, log: log, maxWorkers: workers, delay: delay}
}

// Enrich returns a copy of items where entries without an image have been
// backfilled from their article page. Items are processed by a bounded
// worker pool; cancellation returns the partially enriched copy.
func (e *Enricher) Enrich(ctx context.Context, items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	copy(out, items)

	var pending []int
	for i, item := range items {
		if item.ImageURL == "" && item.Link != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return out
	}

	var limiter <-chan time.Time
	if e.delay > 0 {
		ticker := time.NewTicker(e.delay)
		defer ticker.Stop()
		limiter = ticker.C
	}

	workerCount := min(len(pending), e.maxWorkers)
	jobCh := make(chan int)
	var wg sync.WaitGroup

	for range workerCount {
		wg.Add(1)
		go e.itemWorker(ctx, limiter, jobCh, out, &wg)
	}

	for _, idx := range pending {
		if ctx.Err() != nil {
			break
		}
		jobCh <- idx
	}
	close(jobCh)

	wg.Wait()
	return out
}

// itemWorker drains the job channel, respecting the rate limiter.
func (e *Enricher) itemWorker(
	ctx context.Context,
	limiter <-chan time.Time,
	jobCh <-chan int,
	out []domain.Item,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for idx := range jobCh {
		if ctx.Err() != nil {
			return
		}

		if limiter != nil {
			select {
			case <-ctx.Done():
				return
			case <-limiter:
			}
		}

		enriched, err := e.fetchAndFill(ctx, out[idx])
		if err != nil {
			e.log.WarnObj("item page enrichment failed", "enrich_error", map[string]any{
				"item_id": out[idx].ID,
				"url":     out[idx].Link,
				"error":   err.Error(),
			})
			continue
		}
		out[idx] = enriched
	}
}

// fetchAndFill fetches the item's page and fills missing fields from its
// metadata.
func (e *Enricher) fetchAndFill(ctx context.Context, item domain.Item) (domain.Item, error) {
	resp, err := e.client.Get(ctx, item.Link, nil)
	if err != nil {
		return item, fmt.Errorf("http fetch: %w", err)
	}
	if resp.StatusCode() != 200 {
		return item, fmt.Errorf("status %d", resp.StatusCode())
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	meta, err := parsePageMeta(body)
	if err != nil {
		return item, err
	}

	if item.ImageURL == "" && meta.ImageURL != "" {
		item.ImageURL = meta.ImageURL
	}
	if item.Summary == "" && meta.Description != "" {
		item.Summary = meta.Description
	}
	return item, nil
}

// pageMeta holds metadata extracted from an HTML page.
type pageMeta struct {
	Description string
	ImageURL    string
}

// parsePageMeta extracts og: and standard meta values from the page body.
func parsePageMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	pm := pageMeta{ImageURL: extract(`meta[property="og:image"]`)}
	pm.Description = extract(`meta[property="og:description"]`)
	if pm.Description == "" {
		pm.Description = extract(`meta[name="description"]`)
	}
	return pm, nil
}
