// Command feedstream runs the feed aggregation service: it fetches all
// active sources on a fixed interval, merges them into one ordered item
// stream, and dispatches newly observed items to configured publishers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lumenlabs/feedstream/internal/aggregator"
	"github.com/lumenlabs/feedstream/internal/catalog"
	"github.com/lumenlabs/feedstream/internal/config"
	"github.com/lumenlabs/feedstream/internal/dispatch"
	"github.com/lumenlabs/feedstream/internal/domain"
	"github.com/lumenlabs/feedstream/internal/enrich"
	"github.com/lumenlabs/feedstream/internal/logger"
	"github.com/lumenlabs/feedstream/internal/state"
	"github.com/lumenlabs/feedstream/pkg/feed"
	"github.com/lumenlabs/feedstream/pkg/httpclient"
	"github.com/lumenlabs/feedstream/pkg/publishers"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "feedstream:", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.StateFile)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pubs, err := buildPublishers(ctx, cfg.PublishersFile, log)
	if err != nil {
		return err
	}
	dispatcher := dispatch.New(store, pubs, log)

	client := httpclient.NewRestyClient(cfg.SourceTimeout)
	resolver := feed.NewResolver(cfg.RelayTemplate, cat.HostRules())
	normalizer := feed.NewNormalizer(feed.NewExtractor(cat.ImageRules()), nil)
	pipeline := aggregator.NewPipeline(client, resolver, normalizer, log)

	var enricher *enrich.Enricher
	if cfg.EnrichEnabled {
		enricher = enrich.New(client, cfg.EnrichWorkers, 0, log)
	}

	agg := aggregator.New(pipeline, aggregator.Config{
		Interval:      cfg.RefreshInterval,
		SourceTimeout: cfg.SourceTimeout,
		OnResult: func(ctx context.Context, result domain.AggregationResult) {
			items := result.Items
			if enricher != nil {
				items = enricher.Enrich(ctx, items)
			}
			dispatcher.Dispatch(ctx, items)
		},
	}, log)

	log.InfoObj("feedstream starting", "startup", map[string]any{
		"sources":    len(cat.Sources()),
		"active":     len(cat.ActiveIDs()),
		"publishers": len(pubs),
		"interval":   cfg.RefreshInterval.String(),
	})

	return agg.Run(ctx, cat.Sources(), cat.ActiveIDs())
}

// buildPublishers loads and instantiates the publisher set; no publishers
// file means dispatch is journal-only.
func buildPublishers(ctx context.Context, path string, log logger.Logger) ([]publishers.Publisher, error) {
	if path == "" {
		return nil, nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	return publishers.BuildAll(ctx, publishers.DefaultRegistry(), reg.Enabled(), log)
}
