package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quakescope/internal/model"
	"quakescope/internal/queue"
)

// ErrMissingEventID rejects stream events that could not be deduplicated
// when the stream redelivers them.
var ErrMissingEventID = errors.New("stream events must carry an earthquake id")

// EventProcessor runs a candidate event through matching, dispatch and
// delivery recording. Implemented by service.AlertService.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event model.CandidateEvent, msg model.AlertMessage) (*model.EventOutcome, error)
}

// Handler processes alert events from the queue.
type Handler struct {
	processor EventProcessor
	logger    *slog.Logger
}

// NewHandler creates a new event handler.
func NewHandler(processor EventProcessor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, logger: logger.With("component", "event_handler")}
}

// HandleEvent routes an event to the alert pipeline based on its type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.AlertEvent) error {
	switch event.Type {
	case queue.EventEarthquakeDetected, queue.EventEarthquakeExpected, queue.EventEarthquakeSimulated:
		return h.handleEarthquake(ctx, event)
	default:
		h.logger.Warn("unknown event type", "type", event.Type)
		return nil
	}
}

func (h *Handler) handleEarthquake(ctx context.Context, event queue.AlertEvent) error {
	candidate := event.Event
	candidate.ID = strings.TrimSpace(candidate.ID)
	if candidate.ID == "" {
		return ErrMissingEventID
	}
	if candidate.Source == "" {
		candidate.Source = sourceForType(event.Type)
	}

	outcome, err := h.processor.ProcessEvent(ctx, candidate, event.Message())
	if err != nil {
		return fmt.Errorf("process earthquake %s: %w", candidate.ID, err)
	}

	h.logger.Info("earthquake processed",
		"earthquake_id", candidate.ID,
		"magnitude", candidate.Magnitude,
		"matches", len(outcome.Matches),
		"notified", outcome.Notified,
		"dry_run", outcome.DryRun,
	)
	return nil
}

func sourceForType(eventType string) string {
	switch eventType {
	case queue.EventEarthquakeDetected:
		return model.SourceDetected
	case queue.EventEarthquakeExpected:
		return model.SourceExpected
	default:
		return model.SourceSimulated
	}
}
