// Package catalog defines the static list of monitored city publications and
// the lookup logic the scheduler and manual triggers rely on.
package catalog

import (
	"strings"
)

// Feed describes one monitored publication source.
type Feed struct {
	// ID is the stable identifier for the source.
	ID string `json:"id"`
	// Publication is the display name of the source.
	Publication string `json:"publication"`
	// City is the city this feed covers.
	City string `json:"city"`
	// Category is the topical tag (e.g. "events", "music", "food").
	Category string `json:"category"`
	// URL is the remote feed location.
	URL string `json:"url"`
	// IsActive gates scheduling; inactive entries are never scheduled.
	IsActive bool `json:"is_active"`
	// PublishDays lists the weekday names on which new content is expected.
	// Empty means no fixed cadence: the feed is always eligible.
	PublishDays []string `json:"publish_days,omitempty"`
	// PublishTime is the "HH:MM" local time content is expected to post on a
	// publish day. Empty defaults to midnight.
	PublishTime string `json:"publish_time,omitempty"`
}

// HasCadence reports whether the feed has a fixed weekly publication cadence.
func (f Feed) HasCadence() bool {
	return len(f.PublishDays) > 0
}

// ScheduleID derives the deterministic key used to track the feed's live
// timer: the feed ID joined with its normalized city.
func (f Feed) ScheduleID() string {
	return f.ID + "-" + NormalizeCity(f.City)
}

// NormalizeCity lowercases a city name and replaces spaces with hyphens.
func NormalizeCity(city string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(city)), " ", "-")
}

// Catalog is a read-only collection of feed descriptors.
type Catalog struct {
	feeds []Feed
}

// New creates a Catalog from the given feed list. The slice is copied so
// later mutation by the caller cannot affect the catalog.
func New(feeds []Feed) *Catalog {
	c := &Catalog{feeds: make([]Feed, len(feeds))}
	copy(c.feeds, feeds)
	return c
}

// All returns every feed in the catalog, active or not.
func (c *Catalog) All() []Feed {
	out := make([]Feed, len(c.feeds))
	copy(out, c.feeds)
	return out
}

// ActiveFeeds returns the feeds eligible for scheduling.
func (c *Catalog) ActiveFeeds() []Feed {
	var out []Feed
	for _, f := range c.feeds {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out
}

// FeedsForCity returns all active feeds covering the given city. The match is
// case-insensitive and tolerant of surrounding whitespace.
func (c *Catalog) FeedsForCity(city string) []Feed {
	want := NormalizeCity(city)
	var out []Feed
	for _, f := range c.feeds {
		if f.IsActive && NormalizeCity(f.City) == want {
			out = append(out, f)
		}
	}
	return out
}

// Cities returns the deduplicated list of cities covered by active feeds,
// preserving catalog order.
func (c *Catalog) Cities() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range c.feeds {
		if !f.IsActive {
			continue
		}
		key := NormalizeCity(f.City)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f.City)
	}
	return out
}
