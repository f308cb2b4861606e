package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quakescope/internal/model"
)

// ErrMissingCoordinates rejects earthquake events without an epicenter.
// A missing latitude or longitude would otherwise decode as 0.
var ErrMissingCoordinates = errors.New("earthquake events must carry latitude and longitude")

// Event types carried on the alert stream
const (
	EventEarthquakeDetected  = "earthquake_detected"
	EventEarthquakeExpected  = "earthquake_expected"
	EventEarthquakeSimulated = "earthquake_simulated"
)

// Stream names
const (
	StreamAlerts = "stream:alerts"
)

// Consumer group name for alert workers
const (
	ConsumerGroupAlerts = "alert_workers"
)

// AlertEvent is a candidate earthquake published by an upstream detector,
// with optional overrides for the notification it produces.
type AlertEvent struct {
	Type      string               `json:"type"`
	Timestamp int64                `json:"timestamp"`
	Event     model.CandidateEvent `json:"earthquake"`

	Title  string            `json:"title,omitempty"`
	Body   string            `json:"body,omitempty"`
	Data   map[string]string `json:"data,omitempty"`
	DryRun bool              `json:"dry_run,omitempty"`
}

// NewEarthquakeEvent wraps a candidate event, deriving the type from its source.
func NewEarthquakeEvent(event model.CandidateEvent) AlertEvent {
	return AlertEvent{
		Type:      eventTypeForSource(event.Source),
		Timestamp: time.Now().Unix(),
		Event:     event,
	}
}

func eventTypeForSource(source string) string {
	switch source {
	case model.SourceDetected:
		return EventEarthquakeDetected
	case model.SourceExpected:
		return EventEarthquakeExpected
	default:
		return EventEarthquakeSimulated
	}
}

// Message returns the notification overrides carried by the event.
func (e AlertEvent) Message() model.AlertMessage {
	return model.AlertMessage{
		Title:  e.Title,
		Body:   e.Body,
		Data:   e.Data,
		DryRun: e.DryRun,
	}
}

// ToMap converts the event to field-value pairs for XADD. The payload is
// serialized into a single "data" field.
func (e AlertEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseAlertEvent parses an AlertEvent from Redis stream message values.
func ParseAlertEvent(values map[string]interface{}) (AlertEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return AlertEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event AlertEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return AlertEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if isEarthquake(event.Type) {
		if err := requireCoordinates(data); err != nil {
			return AlertEvent{}, err
		}
	}
	return event, nil
}

func isEarthquake(eventType string) bool {
	switch eventType {
	case EventEarthquakeDetected, EventEarthquakeExpected, EventEarthquakeSimulated:
		return true
	}
	return false
}

func requireCoordinates(data string) error {
	var epicenter struct {
		Earthquake struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"earthquake"`
	}
	if err := json.Unmarshal([]byte(data), &epicenter); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if epicenter.Earthquake.Latitude == nil || epicenter.Earthquake.Longitude == nil {
		return ErrMissingCoordinates
	}
	return nil
}
