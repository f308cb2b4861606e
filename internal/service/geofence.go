package service

import (
	"math"

	"quakescope/internal/model"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points given in decimal degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// MatchEvent returns the registrations that should be alerted for event, in
// snapshot order. A registration matches when it has a complete geofence, the
// magnitude reaches its minimum (inclusive), the epicentre lies within the
// radius and the event is not already in its delivery history.
func MatchEvent(event model.CandidateEvent, snapshot model.Snapshot) []model.Match {
	matches := make([]model.Match, 0)

	for _, reg := range snapshot.Registrations {
		prefs := reg.Preferences
		if prefs == nil || prefs.Latitude == nil || prefs.Longitude == nil || prefs.RadiusKm == nil {
			continue
		}

		minMag := 0.0
		if prefs.MinimumMagnitude != nil {
			minMag = *prefs.MinimumMagnitude
		}
		if event.Magnitude < minMag {
			continue
		}

		distance := HaversineKm(event.Latitude, event.Longitude, *prefs.Latitude, *prefs.Longitude)
		if distance > *prefs.RadiusKm {
			continue
		}

		if reg.HasDelivered(event.ID) {
			continue
		}

		matches = append(matches, model.Match{
			Token:        reg.Token,
			DistanceKm:   distance,
			RadiusKm:     *prefs.RadiusKm,
			MinMagnitude: minMag,
		})
	}

	return matches
}
