package model

// DefaultDeliveryHistoryCap bounds how many delivered event IDs are kept per device.
const DefaultDeliveryHistoryCap = 100

// Metadata keys accepted on device registration.
const (
	MetadataPlatform   = "platform"
	MetadataLocale     = "locale"
	MetadataAppVersion = "appVersion"
)

// Registration is the stored state of one push device token.
// The token is the primary key; timestamps are unix seconds.
type Registration struct {
	Token        string            `json:"token"`
	CreatedAt    int64             `json:"created_at"`
	UpdatedAt    int64             `json:"updated_at"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Preferences  *Preferences      `json:"preferences,omitempty"`
	DeliveredIDs []string          `json:"delivered_ids,omitempty"`
}

// Preferences is the geofence a device wants alerts for.
// Any nil coordinate or radius disables geofenced matching for the device.
type Preferences struct {
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	RadiusKm         *float64 `json:"radius_km"`
	MinimumMagnitude *float64 `json:"minimum_magnitude"`
	UpdatedAt        int64    `json:"updated_at"`
}

// PreferencesInput carries the optional values of a preferences update.
type PreferencesInput struct {
	Latitude         *float64
	Longitude        *float64
	RadiusKm         *float64
	MinimumMagnitude *float64
}

// HasDelivered reports whether eventID is already in the delivery history.
// An empty eventID is never considered delivered.
func (r *Registration) HasDelivered(eventID string) bool {
	if eventID == "" {
		return false
	}
	for _, id := range r.DeliveredIDs {
		if id == eventID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy that shares no mutable state with r.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	if r.Preferences != nil {
		p := *r.Preferences
		p.Latitude = cloneFloat(r.Preferences.Latitude)
		p.Longitude = cloneFloat(r.Preferences.Longitude)
		p.RadiusKm = cloneFloat(r.Preferences.RadiusKm)
		p.MinimumMagnitude = cloneFloat(r.Preferences.MinimumMagnitude)
		out.Preferences = &p
	}
	if r.DeliveredIDs != nil {
		out.DeliveredIDs = append([]string(nil), r.DeliveredIDs...)
	}
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

// Snapshot is a detached, insertion-ordered copy of the registration collection.
type Snapshot struct {
	Registrations []*Registration
}

// Get returns the registration for token, or nil.
func (s Snapshot) Get(token string) *Registration {
	for _, r := range s.Registrations {
		if r.Token == token {
			return r
		}
	}
	return nil
}

// Len returns the number of registrations in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Registrations)
}
