package scheduler

import (
	"sort"
	"time"
)

// UpcomingFetch is the per-feed projection in the scheduler status.
type UpcomingFetch struct {
	ScheduleID  string     `json:"schedule_id"`
	Publication string     `json:"publication"`
	City        string     `json:"city"`
	Category    string     `json:"category"`
	NextRun     time.Time  `json:"next_run"`
	IsActive    bool       `json:"is_active"` // whether a live timer exists for this schedule
	LastFetch   *time.Time `json:"last_fetch,omitempty"`
}

// Status is the read-only snapshot of the scheduler's state.
type Status struct {
	IsRunning       bool            `json:"is_running"`
	ActiveTasks     int             `json:"active_tasks"`
	TotalFeeds      int             `json:"total_feeds"`
	UpcomingFetches []UpcomingFetch `json:"upcoming_fetches"`
	CitiesMonitored []string        `json:"cities_monitored"`
	LastCheck       time.Time       `json:"last_check"`
}

// Status returns a snapshot of the scheduler's state. Next-run times are
// recomputed fresh relative to call time rather than read from the live
// timers, and the projection is sorted ascending by next run. The call never
// mutates scheduler state.
func (s *Scheduler) Status() Status {
	now := s.nowFn()
	feeds := s.catalog.ActiveFeeds()

	s.mu.Lock()
	activeTasks := len(s.tasks)
	upcoming := make([]UpcomingFetch, 0, len(feeds))
	for _, feed := range feeds {
		sid := feed.ScheduleID()
		_, live := s.tasks[sid]

		entry := UpcomingFetch{
			ScheduleID:  sid,
			Publication: feed.Publication,
			City:        feed.City,
			Category:    feed.Category,
			NextRun:     NextRun(feed, now, s.cfg.DefaultPollInterval),
			IsActive:    live,
		}
		if last, ok := s.lastFetch[feed.ID]; ok {
			t := last
			entry.LastFetch = &t
		}
		upcoming = append(upcoming, entry)
	}
	s.mu.Unlock()

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].NextRun.Before(upcoming[j].NextRun)
	})

	return Status{
		IsRunning:       activeTasks > 0,
		ActiveTasks:     activeTasks,
		TotalFeeds:      len(feeds),
		UpcomingFetches: upcoming,
		CitiesMonitored: s.catalog.Cities(),
		LastCheck:       now,
	}
}
