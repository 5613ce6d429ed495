package scheduler

import (
	"strconv"
	"strings"
	"time"

	"github.com/wanderhub/publication-ingest/internal/catalog"
)

// weekdayByName maps lowercase weekday names to time.Weekday. Names outside
// this map are silently ignored when scanning a feed's publish days.
var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NextRun computes the next wall-clock instant the feed should be fetched,
// relative to now.
//
// Feeds without a publication cadence are polled on defaultPoll. Feeds with
// publish days fire at the nearest upcoming (day, publish time) slot: today
// counts if today's publish time has not passed yet, otherwise the same day
// next week is the candidate. If no publish day name is recognized, the
// lookahead defaults to seven days.
func NextRun(feed catalog.Feed, now time.Time, defaultPoll time.Duration) time.Time {
	if !feed.HasCadence() {
		return now.Add(defaultPoll)
	}

	hour, minute := parsePublishTime(feed.PublishTime)

	best := 7
	for _, name := range feed.PublishDays {
		wd, ok := weekdayByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		offset := (int(wd) - int(now.Weekday()) + 7) % 7
		if offset == 0 && publishInstant(now, hour, minute).Before(now) {
			// Today is a publish day but its slot already passed.
			offset = 7
		}
		if offset < best {
			best = offset
		}
	}

	day := now.AddDate(0, 0, best)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
}

// ShouldFetchNow decides whether a feed is eligible for fetching at now.
//
// A feed fetched within the cooldown is never eligible, regardless of its
// cadence. Cadence-less feeds are otherwise always eligible. Feeds with
// publish days are eligible only inside the window following their most
// recent publish slot.
func ShouldFetchNow(feed catalog.Feed, lastFetch time.Time, now time.Time, cooldown, window time.Duration) bool {
	if !lastFetch.IsZero() && now.Sub(lastFetch) < cooldown {
		return false
	}
	if !feed.HasCadence() {
		return true
	}

	hour, minute := parsePublishTime(feed.PublishTime)
	for _, name := range feed.PublishDays {
		wd, ok := weekdayByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if now.Sub(lastPublishInstant(now, wd, hour, minute)) <= window {
			return true
		}
	}
	return false
}

// lastPublishInstant returns the most recent occurrence of the given weekday
// at the given time, at or before now.
func lastPublishInstant(now time.Time, wd time.Weekday, hour, minute int) time.Time {
	daysBack := (int(now.Weekday()) - int(wd) + 7) % 7
	day := now.AddDate(0, 0, -daysBack)
	instant := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
	if instant.After(now) {
		// Today is the publish day but the slot hasn't arrived yet; the most
		// recent one was a week ago.
		instant = instant.AddDate(0, 0, -7)
	}
	return instant
}

// publishInstant returns today's date at the given publish time.
func publishInstant(now time.Time, hour, minute int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
}

// parsePublishTime parses an "HH:MM" string. Missing or malformed values
// default to midnight.
func parsePublishTime(s string) (hour, minute int) {
	if s == "" {
		return 0, 0
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return 0, 0
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 {
		return 0, 0
	}
	return h, m
}
