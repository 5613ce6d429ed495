// Package scheduler manages the timing and execution of publication feed
// fetching: per-feed timers derived from weekly publication calendars, the
// fetch-window gate, and the manual trigger and status entry points.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wanderhub/publication-ingest/internal/catalog"
	"github.com/wanderhub/publication-ingest/internal/config"
)

// FetchRunner executes the fetch/parse/store pipeline for one feed and
// returns the number of events created.
type FetchRunner interface {
	FetchAndProcess(ctx context.Context, feed catalog.Feed) (int, error)
}

// task tracks one live per-feed schedule.
type task struct {
	feed catalog.Feed
}

// Scheduler owns the live set of per-feed timers and the last-fetch records.
// All mutable state is guarded by mu: unlike the typical single-threaded
// timer-callback model, Go timers fire on their own goroutines.
type Scheduler struct {
	cfg     config.SchedulerConfig
	catalog *catalog.Catalog
	runner  FetchRunner
	logger  *slog.Logger
	nowFn   func() time.Time

	mu        sync.Mutex
	tasks     map[string]*task     // keyed by schedule ID
	lastFetch map[string]time.Time // keyed by feed ID
	inFlight  map[string]struct{}  // keyed by schedule ID
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a Scheduler over the given catalog. Nothing runs until Start.
func New(cfg config.SchedulerConfig, cat *catalog.Catalog, runner FetchRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		catalog:   cat,
		runner:    runner,
		logger:    logger.With(slog.String("component", "scheduler")),
		nowFn:     time.Now,
		tasks:     make(map[string]*task),
		lastFetch: make(map[string]time.Time),
		inFlight:  make(map[string]struct{}),
	}
}

// Start schedules every active catalog feed: a one-shot delay until the
// feed's next publish slot, then a recurring interval gated by
// ShouldFetchNow. Start is idempotent; any running timer set is stopped
// and fully cleared before the new one is installed. Cancelling ctx stops
// the scheduler as if Stop had been called.
func (s *Scheduler) Start(ctx context.Context) {
	s.Stop()

	s.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	now := s.nowFn()
	feeds := s.catalog.ActiveFeeds()
	for _, feed := range feeds {
		next := NextRun(feed, now, s.cfg.DefaultPollInterval)
		delay := next.Sub(now)
		if delay < 0 {
			delay = 0
		}

		s.tasks[feed.ScheduleID()] = &task{feed: feed}
		s.wg.Add(1)
		go s.runFeed(runCtx, feed, delay)

		s.logger.Info("Scheduled feed",
			slog.String("schedule_id", feed.ScheduleID()),
			slog.String("publication", feed.Publication),
			slog.String("city", feed.City),
			slog.Time("next_run", next),
		)
	}
	s.mu.Unlock()

	s.logger.Info("Scheduler started", slog.Int("feeds", len(feeds)))
}

// Stop cancels every live timer and empties the task map. Safe to call when
// nothing is running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.tasks = make(map[string]*task)
	s.inFlight = make(map[string]struct{})
	s.mu.Unlock()

	s.logger.Info("Scheduler stopped")
}

// runFeed is one feed's schedule: the initial one-shot fetch at the feed's
// next publish slot, then the recurring gated interval.
func (s *Scheduler) runFeed(ctx context.Context, feed catalog.Feed, delay time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	// The initial fire fetches unconditionally; the gate only applies to
	// interval ticks, where it prevents redundant polling between publish
	// slots.
	if _, err := s.executeFetch(ctx, feed); err != nil {
		s.logFetchError(feed, err)
	}

	ticker := time.NewTicker(s.intervalFor(feed))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.eligible(feed) {
				s.logger.Debug("Skipping fetch outside window",
					slog.String("schedule_id", feed.ScheduleID()))
				continue
			}
			if _, err := s.executeFetch(ctx, feed); err != nil {
				// Best effort: the ticker stays installed and the next tick
				// simply tries again.
				s.logFetchError(feed, err)
			}
		}
	}
}

// intervalFor returns the recurring fetch period: weekly for feeds with a
// publication cadence, daily otherwise.
func (s *Scheduler) intervalFor(feed catalog.Feed) time.Duration {
	if feed.HasCadence() {
		return s.cfg.WeeklyInterval
	}
	return s.cfg.DailyInterval
}

// eligible consults the fetch-window gate with the feed's recorded last
// fetch time.
func (s *Scheduler) eligible(feed catalog.Feed) bool {
	s.mu.Lock()
	last := s.lastFetch[feed.ID]
	s.mu.Unlock()
	return ShouldFetchNow(feed, last, s.nowFn(), s.cfg.FetchCooldown, s.cfg.PublishWindow)
}

// executeFetch runs the adapter for one feed under the process timeout and
// records the completion time on success. A schedule whose previous fetch is
// still in flight is skipped rather than overlapped.
func (s *Scheduler) executeFetch(ctx context.Context, feed catalog.Feed) (int, error) {
	sid := feed.ScheduleID()

	s.mu.Lock()
	if _, busy := s.inFlight[sid]; busy {
		s.mu.Unlock()
		s.logger.Warn("Fetch already in flight, skipping",
			slog.String("schedule_id", sid))
		return 0, ErrFetchInFlight
	}
	s.inFlight[sid] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, sid)
		s.mu.Unlock()
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FeedProcessTimeout)
	defer cancel()

	count, err := s.runner.FetchAndProcess(fetchCtx, feed)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.lastFetch[feed.ID] = s.nowFn()
	s.mu.Unlock()

	s.logger.Info("Fetch complete",
		slog.String("schedule_id", sid),
		slog.String("publication", feed.Publication),
		slog.Int("events_created", count),
	)
	return count, nil
}

func (s *Scheduler) logFetchError(feed catalog.Feed, err error) {
	s.logger.Error("Feed fetch failed",
		slog.String("schedule_id", feed.ScheduleID()),
		slog.String("publication", feed.Publication),
		slog.Any("error", err),
	)
}
