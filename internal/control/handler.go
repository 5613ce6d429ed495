// Package control handles operator commands received over the message queue:
// manual city fetches and status queries against the running scheduler.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wanderhub/publication-ingest/internal/messaging"
	"github.com/wanderhub/publication-ingest/internal/scheduler"
)

// Command names accepted on the control queue.
const (
	CommandFetchCity = "fetch_city"
	CommandStatus    = "status"
	CommandSmokeTest = "smoke_test"
)

// commandRequest is the expected shape of a control message.
type commandRequest struct {
	// Command selects the operation: fetch_city, status, or smoke_test.
	Command string `json:"command"`
	// City names the target for fetch_city.
	City string `json:"city,omitempty"`
}

// Handler listens for and executes operator commands.
type Handler struct {
	sched     *scheduler.Scheduler
	mqClient  messaging.Client
	queueName string
	logger    *slog.Logger
}

// NewHandler creates a handler for operator commands.
func NewHandler(sched *scheduler.Scheduler, mqClient messaging.Client, queueName string, logger *slog.Logger) *Handler {
	if queueName == "" {
		logger.Warn("Control queue name is empty, operator commands will not work")
	}
	return &Handler{
		sched:     sched,
		mqClient:  mqClient,
		queueName: queueName,
		logger:    logger.With(slog.String("component", "control")),
	}
}

// Start begins consuming commands from the control queue. It blocks until the
// context is cancelled or subscription setup fails.
func (h *Handler) Start(ctx context.Context) error {
	h.logger.Info("Starting control handler", slog.String("queue", h.queueName))

	if err := h.mqClient.Subscribe(ctx, h.queueName, h.handleCommand); err != nil {
		return fmt.Errorf("failed to subscribe to queue %s: %w", h.queueName, err)
	}

	<-ctx.Done()
	h.logger.Info("Control handler shutting down")
	return ctx.Err()
}

// handleCommand processes a single operator command. Malformed messages are
// acknowledged (returning nil) so they do not loop through the queue forever.
func (h *Handler) handleCommand(ctx context.Context, msgBody []byte) error {
	var req commandRequest
	if err := json.Unmarshal(msgBody, &req); err != nil {
		h.logger.Error("Failed to unmarshal control command",
			slog.Any("error", err),
			slog.String("raw_body", string(msgBody)),
		)
		return nil
	}

	cmdLog := h.logger.With(slog.String("command", req.Command))

	switch req.Command {
	case CommandFetchCity:
		if req.City == "" {
			cmdLog.Warn("fetch_city command without a city, discarding")
			return nil
		}
		report, err := h.sched.ManualFetchCity(ctx, req.City)
		if err != nil {
			if errors.Is(err, scheduler.ErrNoFeedsForCity) {
				cmdLog.Warn("No feeds for requested city", slog.String("city", req.City))
				return nil
			}
			return fmt.Errorf("manual fetch for city %q failed: %w", req.City, err)
		}
		cmdLog.Info("Manual city fetch finished",
			slog.String("city", report.City),
			slog.Int("feeds_processed", report.FeedsProcessed),
			slog.Int("total_events", report.TotalEvents),
		)
		return nil

	case CommandStatus:
		st := h.sched.Status()
		cmdLog.Info("Scheduler status",
			slog.Bool("is_running", st.IsRunning),
			slog.Int("active_tasks", st.ActiveTasks),
			slog.Int("total_feeds", st.TotalFeeds),
			slog.Int("cities", len(st.CitiesMonitored)),
		)
		return nil

	case CommandSmokeTest:
		reports := h.sched.TestAllCityFeeds(ctx)
		cmdLog.Info("Smoke test finished", slog.Int("cities_tested", len(reports)))
		return nil

	default:
		cmdLog.Warn("Unknown control command, discarding")
		return nil
	}
}
