// Package storage defines the interface and Postgres implementation for
// persisting extracted event items and the per-feed identifier sets used for
// de-duplication.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wanderhub/publication-ingest/internal/catalog"
	"github.com/wanderhub/publication-ingest/internal/parsing"
)

// ErrEventNotFound is returned when a specific event is not found.
var ErrEventNotFound = errors.New("event not found")

// Store defines the operations the ingest pipeline needs from the data store.
type Store interface {
	// KnownGUIDs retrieves the set of item GUIDs already stored for a feed.
	// Used to identify new items. Keys of the returned map are GUIDs.
	KnownGUIDs(ctx context.Context, feedID string) (map[string]struct{}, error)

	// SaveEvents stores newly extracted items for a feed and returns how many
	// were actually inserted. Items whose GUID already exists for the feed
	// are skipped, so concurrent or repeated saves are safe.
	SaveEvents(ctx context.Context, feed catalog.Feed, items []*parsing.Item) (int, error)

	// Close gracefully closes the underlying database connection(s).
	Close() error
}

// EventStore provides a Postgres-backed implementation of the Store interface.
type EventStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventStore creates a new EventStore instance.
func NewEventStore(db *sql.DB, logger *slog.Logger) *EventStore {
	return &EventStore{
		db:     db,
		logger: logger.With(slog.String("component", "storage")),
	}
}

// Close closes the database connection pool.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// KnownGUIDs retrieves the set of stored item GUIDs for a feed.
func (s *EventStore) KnownGUIDs(ctx context.Context, feedID string) (map[string]struct{}, error) {
	query := `SELECT guid FROM publication_events WHERE feed_id = $1;`

	rows, err := s.db.QueryContext(ctx, query, feedID)
	if err != nil {
		return nil, fmt.Errorf("querying known GUIDs for feed %s failed: %w", feedID, err)
	}
	defer rows.Close()

	guids := make(map[string]struct{})
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			s.logger.Error("Failed to scan GUID row", slog.String("feed_id", feedID), slog.Any("error", err))
			continue
		}
		guids[guid] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating GUIDs for feed %s: %w", feedID, err)
	}

	s.logger.Debug("Retrieved known GUIDs", slog.String("feed_id", feedID), slog.Int("count", len(guids)))
	return guids, nil
}

// SaveEvents stores newly extracted items for a feed inside a single
// transaction and returns the number of rows actually inserted.
func (s *EventStore) SaveEvents(ctx context.Context, feed catalog.Feed, items []*parsing.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for feed %s: %w", feed.ID, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO publication_events
			(feed_id, guid, city, category, publication, title, link, summary, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (feed_id, guid) DO NOTHING;
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare event insert for feed %s: %w", feed.ID, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		res, err := stmt.ExecContext(ctx,
			feed.ID, item.GUID, feed.City, feed.Category, feed.Publication,
			item.Title, item.Link, item.Summary,
			sql.NullTime{Time: item.Published, Valid: !item.Published.IsZero()},
		)
		if err != nil {
			s.logger.Error("Failed to insert event",
				slog.String("feed_id", feed.ID),
				slog.String("guid", item.GUID),
				slog.Any("error", err),
			)
			return 0, fmt.Errorf("failed to save event %s for feed %s: %w", item.GUID, feed.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events for feed %s: %w", feed.ID, err)
	}

	s.logger.Info("Saved new events",
		slog.String("feed_id", feed.ID),
		slog.String("city", feed.City),
		slog.Int("inserted", inserted),
		slog.Int("offered", len(items)),
	)
	return inserted, nil
}

// RecentEventCount returns how many events were stored for a city since the
// given cutoff. Used by operational tooling to sanity-check ingestion volume.
func (s *EventStore) RecentEventCount(ctx context.Context, city string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM publication_events WHERE LOWER(city) = LOWER($1) AND created_at >= $2;`

	var count int
	if err := s.db.QueryRowContext(ctx, query, city, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting recent events for city %s failed: %w", city, err)
	}
	return count, nil
}

// Ensure EventStore implements the Store interface.
var _ Store = (*EventStore)(nil)
