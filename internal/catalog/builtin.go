package catalog

// Builtin returns the catalog of city publications the service monitors by
// default. Cadences reflect each publication's posted weekly schedule; feeds
// without publish days are rolling event calendars polled on the default
// interval.
func Builtin() *Catalog {
	return New([]Feed{
		{
			ID:          "austin-chronicle",
			Publication: "The Austin Chronicle",
			City:        "Austin",
			Category:    "events",
			URL:         "https://www.austinchronicle.com/feeds/events/",
			IsActive:    true,
			PublishDays: []string{"Thursday"},
			PublishTime: "06:00",
		},
		{
			ID:          "austin-360",
			Publication: "Austin360",
			City:        "Austin",
			Category:    "entertainment",
			URL:         "https://www.austin360.com/feed/",
			IsActive:    true,
		},
		{
			ID:          "do512",
			Publication: "Do512",
			City:        "Austin",
			Category:    "events",
			URL:         "https://do512.com/events.rss",
			IsActive:    true,
		},
		{
			ID:          "portland-mercury",
			Publication: "Portland Mercury",
			City:        "Portland",
			Category:    "events",
			URL:         "https://www.portlandmercury.com/events/rss",
			IsActive:    true,
			PublishDays: []string{"Wednesday"},
			PublishTime: "08:00",
		},
		{
			ID:          "willamette-week",
			Publication: "Willamette Week",
			City:        "Portland",
			Category:    "culture",
			URL:         "https://www.wweek.com/arts/feed/",
			IsActive:    true,
			PublishDays: []string{"Tuesday", "Wednesday"},
			PublishTime: "07:00",
		},
		{
			ID:          "the-stranger",
			Publication: "The Stranger",
			City:        "Seattle",
			Category:    "events",
			URL:         "https://www.thestranger.com/events/rss",
			IsActive:    true,
			PublishDays: []string{"Wednesday"},
			PublishTime: "09:00",
		},
		{
			ID:          "seattle-met",
			Publication: "Seattle Met",
			City:        "Seattle",
			Category:    "culture",
			URL:         "https://www.seattlemet.com/feed/",
			IsActive:    true,
		},
		{
			ID:          "chicago-reader",
			Publication: "Chicago Reader",
			City:        "Chicago",
			Category:    "events",
			URL:         "https://chicagoreader.com/feed/",
			IsActive:    true,
			PublishDays: []string{"Thursday"},
			PublishTime: "05:00",
		},
		{
			ID:          "timeout-chicago",
			Publication: "Time Out Chicago",
			City:        "Chicago",
			Category:    "entertainment",
			URL:         "https://www.timeout.com/chicago/rss.xml",
			IsActive:    true,
		},
		{
			ID:          "nola-gambit",
			Publication: "Gambit",
			City:        "New Orleans",
			Category:    "events",
			URL:         "https://www.nola.com/gambit/feed/",
			IsActive:    true,
			PublishDays: []string{"Monday"},
			PublishTime: "10:00",
		},
		{
			// Folded in 2023; kept for history, never scheduled.
			ID:          "dig-boston",
			Publication: "DigBoston",
			City:        "Boston",
			Category:    "events",
			URL:         "https://digboston.com/feed/",
			IsActive:    false,
			PublishDays: []string{"Thursday"},
		},
	})
}
