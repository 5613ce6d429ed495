// Package parsing handles parsing RSS and Atom feed content (XML), filtering
// out low-quality entries, and identifying new items compared to a set of
// known item identifiers.
package parsing

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	// minTitleLen is the shortest title accepted as a usable event candidate.
	minTitleLen = 8
	// maxItemAge drops items whose publish date is long past; stale entries
	// in rolling feeds are not worth ingesting as events.
	maxItemAge = 45 * 24 * time.Hour
)

// Item represents a single feed entry (event listing, article) extracted in a
// standardized format.
type Item struct {
	GUID       string    `json:"guid"`      // Atom ID, RSS GUID, or Link when both are missing
	Link       string    `json:"link"`      // primary URL for the item
	Title      string    `json:"title"`     // title of the item
	Published  time.Time `json:"published"` // publication time, best effort, UTC
	Updated    time.Time `json:"updated"`   // last updated time, best effort, UTC
	Summary    string    `json:"summary"`   // main content or description
	AuthorName string    `json:"author_name,omitempty"`
	Categories []string  `json:"categories,omitempty"`
}

// Result holds the outcome of parsing a feed and comparing its items.
type Result struct {
	// FeedTitle is the title declared by the remote feed.
	FeedTitle string
	// NewItems contains only the items that passed quality filtering and are
	// not in the known-GUID set.
	NewItems []*Item
	// Skipped counts items dropped by quality filtering.
	Skipped int
}

// Parser extracts standardized items from raw feed data.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new Parser instance.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		logger: logger.With(slog.String("component", "parser")),
	}
}

// Extract parses feedData and returns the items that pass quality filtering
// and whose GUIDs are not present in knownGUIDs. Duplicate GUIDs within the
// same document are collapsed to their first occurrence.
func (p *Parser) Extract(ctx context.Context, feedURL string, feedData []byte, knownGUIDs map[string]struct{}) (*Result, error) {
	parseLog := p.logger.With(slog.String("feed_url", feedURL))

	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(feedData))
	if err != nil {
		return nil, fmt.Errorf("parsing error for %s: %w", feedURL, err)
	}
	if feed == nil {
		return nil, fmt.Errorf("parsing resulted in nil feed for %s", feedURL)
	}

	result := &Result{
		FeedTitle: feed.Title,
		NewItems:  make([]*Item, 0, len(feed.Items)),
	}

	seen := make(map[string]struct{}, len(feed.Items))
	now := time.Now().UTC()

	for _, raw := range feed.Items {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if raw == nil {
			continue
		}

		guid := extractGUID(raw)
		item := convertItem(raw, guid)

		if reason := rejectReason(item, now); reason != "" {
			result.Skipped++
			parseLog.Debug("Dropped low-quality item",
				slog.String("title", raw.Title),
				slog.String("reason", reason),
			)
			continue
		}

		if _, dup := seen[guid]; dup {
			result.Skipped++
			continue
		}
		seen[guid] = struct{}{}

		if _, known := knownGUIDs[guid]; known {
			continue
		}
		result.NewItems = append(result.NewItems, item)
	}

	parseLog.Debug("Extraction complete",
		slog.Int("total_items", len(feed.Items)),
		slog.Int("new_items", len(result.NewItems)),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// rejectReason reports why an item should be dropped, or "" if it is usable.
func rejectReason(item *Item, now time.Time) string {
	if item.GUID == "" {
		return "no usable identifier"
	}
	if item.Link == "" {
		return "no link"
	}
	if len(strings.TrimSpace(item.Title)) < minTitleLen {
		return "title too short"
	}
	if !item.Published.IsZero() && now.Sub(item.Published) > maxItemAge {
		return "stale publish date"
	}
	return ""
}

// extractGUID determines the best unique identifier for a feed item.
// Prefers the Atom ID / RSS GUID, falls back to the item link.
func extractGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

// convertItem transforms a gofeed.Item into the standardized Item struct.
func convertItem(raw *gofeed.Item, guid string) *Item {
	item := &Item{
		GUID:       guid,
		Link:       raw.Link,
		Title:      strings.TrimSpace(raw.Title),
		Summary:    raw.Content,
		Categories: raw.Categories,
	}

	// RSS typically carries the body in the description.
	if item.Summary == "" {
		item.Summary = raw.Description
	}

	if raw.Author != nil {
		item.AuthorName = raw.Author.Name
	}

	if raw.PublishedParsed != nil {
		item.Published = raw.PublishedParsed.UTC()
	}
	if raw.UpdatedParsed != nil {
		item.Updated = raw.UpdatedParsed.UTC()
	}
	if item.Published.IsZero() {
		item.Published = item.Updated
	}
	if item.Updated.IsZero() {
		item.Updated = item.Published
	}

	return item
}
