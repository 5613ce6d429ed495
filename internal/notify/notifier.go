// Package notify announces newly stored event items to downstream consumers
// over the message queue.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wanderhub/publication-ingest/internal/config"
	"github.com/wanderhub/publication-ingest/internal/messaging"
	"github.com/wanderhub/publication-ingest/internal/parsing"
)

// Notifier sends notifications about newly stored events.
type Notifier interface {
	// NotifyNewEvents announces items stored for the given city and feed.
	NotifyNewEvents(ctx context.Context, feedID, city string, items []*parsing.Item) error
}

// eventMessage is the wire shape of one event notification.
type eventMessage struct {
	FeedID     string        `json:"feed_id"`
	City       string        `json:"city"`
	NotifiedAt time.Time     `json:"notified_at"`
	Item       *parsing.Item `json:"item"`
}

// mqNotifier implements Notifier using a message queue.
type mqNotifier struct {
	cfg      config.NotifyConfig
	mqClient messaging.Client
	logger   *slog.Logger
}

// NewNotifier creates a Notifier. When notifications are disabled via config a
// no-op implementation is returned.
func NewNotifier(cfg config.NotifyConfig, mqClient messaging.Client, logger *slog.Logger) (Notifier, error) {
	if !cfg.Enabled {
		logger.Info("Event notifier is disabled via configuration")
		return &noopNotifier{logger: logger}, nil
	}

	if mqClient == nil {
		return nil, fmt.Errorf("message queue client is required but was not provided")
	}
	if cfg.TargetTopic == "" {
		return nil, fmt.Errorf("notify target topic is required but not configured")
	}

	return &mqNotifier{
		cfg:      cfg,
		mqClient: mqClient,
		logger:   logger.With(slog.String("component", "notifier")),
	}, nil
}

// NotifyNewEvents publishes one message per stored item. Marshal or publish
// failures for individual items do not stop the remaining items; the first
// error encountered is returned once the batch is done.
func (n *mqNotifier) NotifyNewEvents(ctx context.Context, feedID, city string, items []*parsing.Item) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC()
	published := 0
	var firstErr error

	for _, item := range items {
		select {
		case <-ctx.Done():
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			return fmt.Errorf("notification cancelled: %w", firstErr)
		default:
		}

		msgBytes, err := json.Marshal(eventMessage{
			FeedID:     feedID,
			City:       city,
			NotifiedAt: now,
			Item:       item,
		})
		if err != nil {
			n.logger.Error("Failed to marshal event notification",
				slog.String("guid", item.GUID), slog.Any("error", err))
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to marshal item %s: %w", item.GUID, err)
			}
			continue
		}

		if err := n.mqClient.Publish(ctx, n.cfg.TargetTopic, msgBytes); err != nil {
			n.logger.Error("Failed to publish event notification",
				slog.String("guid", item.GUID),
				slog.String("topic", n.cfg.TargetTopic),
				slog.Any("error", err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to publish item %s: %w", item.GUID, err)
			}
			continue
		}
		published++
	}

	n.logger.Info("Notified downstream about new events",
		slog.String("feed_id", feedID),
		slog.String("city", city),
		slog.Int("published", published),
		slog.Int("total", len(items)),
	)
	return firstErr
}

// noopNotifier implements Notifier but does nothing. Used when disabled.
type noopNotifier struct {
	logger *slog.Logger
}

func (n *noopNotifier) NotifyNewEvents(ctx context.Context, feedID, city string, items []*parsing.Item) error {
	if len(items) > 0 {
		n.logger.Debug("Skipping event notification, notifier disabled", slog.Int("count", len(items)))
	}
	return nil
}

// Ensure implementations satisfy the interface.
var (
	_ Notifier = (*mqNotifier)(nil)
	_ Notifier = (*noopNotifier)(nil)
)
