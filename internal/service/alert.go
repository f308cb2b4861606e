package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quakescope/internal/model"
	"quakescope/internal/repository"
)

// NoMatchMessage is reported when an event reaches no subscriber.
const NoMatchMessage = "No subscribers matched the simulated earthquake filters."

// AlertService ties the registration store, the geofence matcher and the
// dispatcher together. It backs both the HTTP API and the event stream workers.
type AlertService struct {
	store      repository.RegistrationStore
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewAlertService(store repository.RegistrationStore, dispatcher *Dispatcher, logger *slog.Logger) *AlertService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertService{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.With("component", "alert_service"),
	}
}

// RegisterDevice upserts a device token with its optional metadata.
func (s *AlertService) RegisterDevice(ctx context.Context, token string, metadata map[string]string) (*model.Registration, error) {
	reg, err := s.store.Register(ctx, token, metadata)
	if err != nil {
		return nil, err
	}
	s.logger.Info("device registered", "token", truncateToken(reg.Token), "platform", reg.Metadata[model.MetadataPlatform])
	return reg, nil
}

// UpdatePreferences replaces the geofence of a device.
func (s *AlertService) UpdatePreferences(ctx context.Context, token string, prefs model.PreferencesInput) (*model.Registration, error) {
	return s.store.UpdatePreferences(ctx, token, prefs)
}

// ListTokens returns every registered token.
func (s *AlertService) ListTokens(ctx context.Context) ([]string, error) {
	return s.store.ListTokens(ctx)
}

// NotifyDevice sends msg to a single token.
func (s *AlertService) NotifyDevice(ctx context.Context, token string, msg model.AlertMessage) (*model.DispatchResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.NewValidationError("Missing device token")
	}
	msg = withDefaultTitle(msg)
	return s.dispatcher.Send(ctx, []string{token}, msg.Title, msg.Body, msg.Data, msg.DryRun)
}

// Broadcast sends msg to tokens, or to every registered token when tokens is nil.
// It returns model.ErrNoTokens when nothing is left to send to.
func (s *AlertService) Broadcast(ctx context.Context, tokens []string, msg model.AlertMessage) (*model.DispatchResult, error) {
	if tokens == nil {
		registered, err := s.store.ListTokens(ctx)
		if err != nil {
			return nil, err
		}
		tokens = registered
	}

	targets := dedupeTokens(tokens)
	if len(targets) == 0 {
		return nil, model.ErrNoTokens
	}

	msg = withDefaultTitle(msg)
	return s.dispatcher.Send(ctx, targets, msg.Title, msg.Body, msg.Data, msg.DryRun)
}

// ProcessEvent matches event against the current registrations, pushes to
// every match and records the delivery for each accepted token.
//
// The match and the record happen under separate store locks, so two
// concurrent calls for the same event can both notify a device.
func (s *AlertService) ProcessEvent(ctx context.Context, event model.CandidateEvent, msg model.AlertMessage) (*model.EventOutcome, error) {
	if event.Source == "" {
		event.Source = model.SourceSimulated
	}
	if msg.Title == "" {
		msg.Title = DefaultEventTitle(event.Source)
	}
	if msg.Body == "" {
		msg.Body = DefaultEventBody(event)
	}

	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}

	matches := MatchEvent(event, snapshot)
	outcome := &model.EventOutcome{
		DryRun:  msg.DryRun,
		Event:   event,
		Matches: matches,
	}

	logger := s.logger.With("event_id", event.ID, "source", event.Source)
	if len(matches) == 0 {
		outcome.Message = NoMatchMessage
		logger.Info("no subscribers matched", "registrations", snapshot.Len())
		return outcome, nil
	}

	tokens := make([]string, len(matches))
	for i, m := range matches {
		tokens[i] = m.Token
	}

	result, err := s.dispatcher.Send(ctx, tokens, msg.Title, msg.Body, EventData(event, msg.Data), msg.DryRun)
	if err != nil {
		return nil, err
	}
	outcome.Result = result
	outcome.Notified = result.SuccessCount

	if !msg.DryRun && event.ID != "" {
		for _, r := range result.Responses {
			if !r.OK() {
				continue
			}
			if err := s.store.RecordDelivery(ctx, r.Token, event.ID); err != nil {
				logger.Error("failed to record delivery", "token", truncateToken(r.Token), "error", err)
			}
		}
	}

	logger.Info("event processed",
		"matches", len(matches),
		"notified", outcome.Notified,
		"dry_run", msg.DryRun,
	)
	return outcome, nil
}

// DefaultEventTitle names the event by its source.
func DefaultEventTitle(source string) string {
	if source == model.SourceDetected {
		return "Detected earthquake"
	}
	return fmt.Sprintf("Simulated %s earthquake", source)
}

// DefaultEventBody describes magnitude and epicentre.
func DefaultEventBody(event model.CandidateEvent) string {
	return fmt.Sprintf("M%.1f event near (%.3f, %.3f).", event.Magnitude, event.Latitude, event.Longitude)
}

// EventData builds the data payload of an event push. Caller entries override
// the generated ones.
func EventData(event model.CandidateEvent, extra map[string]string) map[string]string {
	data := map[string]string{
		"earthquake_id": event.ID,
		"magnitude":     fmt.Sprintf("%.2f", event.Magnitude),
		"source":        event.Source,
		"latitude":      fmt.Sprintf("%.5f", event.Latitude),
		"longitude":     fmt.Sprintf("%.5f", event.Longitude),
	}
	if event.Depth != nil {
		data["depth"] = fmt.Sprintf("%.1f", *event.Depth)
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func withDefaultTitle(msg model.AlertMessage) model.AlertMessage {
	if msg.Title == "" {
		msg.Title = model.DefaultAlertTitle
	}
	return msg
}
