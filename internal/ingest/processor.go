// Package ingest implements the feed fetch/parse adapter: it fetches one
// catalog feed, extracts candidate event items, persists the new ones, and
// announces them downstream.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wanderhub/publication-ingest/internal/catalog"
	"github.com/wanderhub/publication-ingest/internal/fetching"
	"github.com/wanderhub/publication-ingest/internal/notify"
	"github.com/wanderhub/publication-ingest/internal/parsing"
	"github.com/wanderhub/publication-ingest/internal/storage"
)

// Fetcher is the subset of the fetching layer the processor needs.
type Fetcher interface {
	Fetch(ctx context.Context, url, etag, lastModified string) (*fetching.Result, error)
}

// conditional holds the validators from the last successful fetch of a feed.
// Kept in memory only; a restart simply refetches unconditionally once.
type conditional struct {
	etag         string
	lastModified string
}

// Processor runs the full ingest pipeline for a single feed.
type Processor struct {
	fetcher  Fetcher
	parser   *parsing.Parser
	store    storage.Store
	notifier notify.Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	validators map[string]conditional // keyed by feed ID
}

// NewProcessor creates a Processor wired to the given collaborators.
func NewProcessor(fetcher Fetcher, parser *parsing.Parser, store storage.Store, notifier notify.Notifier, logger *slog.Logger) *Processor {
	return &Processor{
		fetcher:    fetcher,
		parser:     parser,
		store:      store,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "ingest")),
		validators: make(map[string]conditional),
	}
}

// FetchAndProcess fetches the feed, extracts and filters its items, stores
// the ones not seen before, and returns the number of events created.
func (p *Processor) FetchAndProcess(ctx context.Context, feed catalog.Feed) (int, error) {
	feedLog := p.logger.With(
		slog.String("feed_id", feed.ID),
		slog.String("publication", feed.Publication),
		slog.String("city", feed.City),
	)

	p.mu.Lock()
	cond := p.validators[feed.ID]
	p.mu.Unlock()

	result, err := p.fetcher.Fetch(ctx, feed.URL, cond.etag, cond.lastModified)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", feed.URL, err)
	}

	p.mu.Lock()
	p.validators[feed.ID] = conditional{etag: result.ETag, lastModified: result.LastModified}
	p.mu.Unlock()

	if result.NotModified {
		feedLog.Debug("Feed content not modified since last fetch")
		return 0, nil
	}

	known, err := p.store.KnownGUIDs(ctx, feed.ID)
	if err != nil {
		return 0, fmt.Errorf("loading known GUIDs for feed %s: %w", feed.ID, err)
	}

	extracted, err := p.parser.Extract(ctx, feed.URL, result.Content, known)
	if err != nil {
		return 0, fmt.Errorf("extracting items from %s: %w", feed.URL, err)
	}

	if len(extracted.NewItems) == 0 {
		feedLog.Debug("No new items after filtering", slog.Int("skipped", extracted.Skipped))
		return 0, nil
	}

	created, err := p.store.SaveEvents(ctx, feed, extracted.NewItems)
	if err != nil {
		return 0, fmt.Errorf("saving events for feed %s: %w", feed.ID, err)
	}

	// A notification failure is not a processing failure: the events are
	// already stored, so log and report the stored count.
	if err := p.notifier.NotifyNewEvents(ctx, feed.ID, feed.City, extracted.NewItems); err != nil {
		feedLog.Warn("Failed to notify downstream about new events", slog.Any("error", err))
	}

	feedLog.Info("Processed feed",
		slog.Int("events_created", created),
		slog.Int("skipped", extracted.Skipped),
	)
	return created, nil
}
