package model

// Event sources known to the alert pipeline.
const (
	SourceSimulated = "simulated"
	SourceDetected  = "detected"
	SourceExpected  = "expected"
)

// DefaultSimulatedMagnitude is used when a simulated event omits its magnitude.
const DefaultSimulatedMagnitude = 5.0

// CandidateEvent is a seismic event evaluated for alerting. It is never persisted.
// Events without an ID are dispatched without idempotency tracking.
type CandidateEvent struct {
	ID        string   `json:"id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Magnitude float64  `json:"magnitude"`
	Depth     *float64 `json:"depth"`
	Source    string   `json:"source"`
}

// Match is a registration eligible for an event, with the computed distance.
type Match struct {
	Token        string  `json:"token"`
	DistanceKm   float64 `json:"distance_km"`
	RadiusKm     float64 `json:"radius_km"`
	MinMagnitude float64 `json:"min_magnitude"`
}

// EventOutcome is the result of running one event through the alert pipeline.
type EventOutcome struct {
	Notified int             `json:"notified"`
	DryRun   bool            `json:"dry_run"`
	Event    CandidateEvent  `json:"earthquake"`
	Matches  []Match         `json:"matches"`
	Result   *DispatchResult `json:"result,omitempty"`
	Message  string          `json:"message,omitempty"`
}
