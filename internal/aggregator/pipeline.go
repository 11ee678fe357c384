package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lumenlabs/feedstream/internal/domain"
	"github.com/lumenlabs/feedstream/internal/logger"
	"github.com/lumenlabs/feedstream/pkg/feed"
	"github.com/lumenlabs/feedstream/pkg/httpclient"
)

// Pipeline runs the fetch -> parse -> normalize chain for one source.
type Pipeline struct {
	client     httpclient.Client
	resolver   *feed.Resolver
	normalizer *feed.Normalizer
	log        logger.Logger
}

// NewPipeline wires a per-source pipeline from its collaborators.
func NewPipeline(client httpclient.Client, resolver *feed.Resolver, normalizer *feed.Normalizer, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Pipeline{
		client:     client,
		resolver:   resolver,
		normalizer: normalizer,
		log:        log,
	}
}

// Collect fetches and normalizes one source. Every failure mode maps to
// zero items plus an error the caller logs; nothing here aborts a cycle.
func (p *Pipeline) Collect(ctx context.Context, src domain.Source) ([]domain.Item, error) {
	fetchURL := p.resolver.ResolveFetchURL(src)

	resp, err := p.client.Get(ctx, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch source %q: %w", src.ID, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("fetch source %q: status %d body: %s",
			src.ID, resp.StatusCode(), responseSnippet(resp.Body()))
	}

	doc, err := feed.Parse(resp.Body())
	if err != nil {
		if errors.Is(err, feed.ErrMalformedDocument) {
			return nil, fmt.Errorf("source %q: %w (payload: %s)", src.ID, err, responseSnippet(resp.Body()))
		}
		return nil, fmt.Errorf("source %q: %w", src.ID, err)
	}

	return p.normalizer.Normalize(doc, src)
}

// logFailure logs a per-source failure at the level its taxonomy calls
// for; empty bodies warn because they usually point at a broken relay.
func (p *Pipeline) logFailure(src domain.Source, err error) {
	fields := map[string]any{
		"source_id": src.ID,
		"url":       src.URL,
		"error":     err.Error(),
	}

	switch {
	case errors.Is(err, feed.ErrEmptyResponse):
		p.log.WarnObj("source returned empty body", "source_empty_response", fields)
	case errors.Is(err, feed.ErrMalformedDocument):
		p.log.WarnObj("source returned malformed document", "source_malformed_document", fields)
	case errors.Is(err, feed.ErrUnrecognizedShape):
		p.log.WarnObj("source has unrecognized feed shape", "source_unrecognized_shape", fields)
	default:
		p.log.WarnObj("source fetch failed", "source_network_error", fields)
	}
}

// responseSnippet returns a truncated snippet of the response body for
// diagnosis in logs and errors.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
