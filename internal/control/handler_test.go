package control

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wanderhub/publication-ingest/internal/catalog"
	"github.com/wanderhub/publication-ingest/internal/config"
	"github.com/wanderhub/publication-ingest/internal/messaging"
	"github.com/wanderhub/publication-ingest/internal/scheduler"
)

type countingRunner struct {
	mu    sync.Mutex
	calls []string
}

func (r *countingRunner) FetchAndProcess(_ context.Context, feed catalog.Feed) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, feed.ID)
	return 2, nil
}

type stubMQ struct{}

func (stubMQ) Publish(context.Context, string, []byte) error                  { return nil }
func (stubMQ) Subscribe(context.Context, string, messaging.HandlerFunc) error { return nil }
func (stubMQ) Close() error                                                   { return nil }

func newTestHandler(runner *countingRunner) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.New([]catalog.Feed{
		{ID: "feed-a", Publication: "A", City: "Austin", IsActive: true},
	})
	cfg := config.SchedulerConfig{
		DefaultPollInterval: time.Hour,
		FetchCooldown:       6 * time.Hour,
		PublishWindow:       72 * time.Hour,
		DailyInterval:       24 * time.Hour,
		WeeklyInterval:      168 * time.Hour,
		FeedProcessTimeout:  time.Minute,
	}
	sched := scheduler.New(cfg, cat, runner, logger)
	return NewHandler(sched, stubMQ{}, "ingest.control", logger)
}

func TestHandleFetchCityCommand(t *testing.T) {
	runner := &countingRunner{}
	h := newTestHandler(runner)

	err := h.handleCommand(context.Background(), []byte(`{"command":"fetch_city","city":"Austin"}`))
	if err != nil {
		t.Fatalf("handleCommand() returned error: %v", err)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 1 || runner.calls[0] != "feed-a" {
		t.Errorf("runner calls = %v, want one fetch of feed-a", runner.calls)
	}
}

func TestHandleFetchCityUnknownCityIsAcked(t *testing.T) {
	h := newTestHandler(&countingRunner{})

	// Unknown city is an operator mistake, not a requeue-able failure.
	if err := h.handleCommand(context.Background(), []byte(`{"command":"fetch_city","city":"Nowhere"}`)); err != nil {
		t.Errorf("handleCommand() returned error for unknown city: %v", err)
	}
}

func TestHandleMalformedCommandIsAcked(t *testing.T) {
	h := newTestHandler(&countingRunner{})

	if err := h.handleCommand(context.Background(), []byte(`{not json`)); err != nil {
		t.Errorf("handleCommand() returned error for malformed message: %v", err)
	}
}

func TestHandleStatusCommand(t *testing.T) {
	h := newTestHandler(&countingRunner{})

	if err := h.handleCommand(context.Background(), []byte(`{"command":"status"}`)); err != nil {
		t.Errorf("handleCommand() returned error for status command: %v", err)
	}
}

func TestHandleUnknownCommandIsAcked(t *testing.T) {
	h := newTestHandler(&countingRunner{})

	if err := h.handleCommand(context.Background(), []byte(`{"command":"reboot"}`)); err != nil {
		t.Errorf("handleCommand() returned error for unknown command: %v", err)
	}
}
