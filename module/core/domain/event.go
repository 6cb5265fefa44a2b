package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransitionType string

const (
	TransitionEnter TransitionType = "enter"
	TransitionExit  TransitionType = "exit"
)

// TransitionEvent records a containment change between two consecutive
// accepted reports of a device.
type TransitionEvent struct {
	ID         uuid.UUID      `json:"id"`
	DeviceID   string         `json:"device_id"`
	GeofenceID string         `json:"geofence_id"`
	Type       TransitionType `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	Lat        float64        `json:"lat"`
	Lon        float64        `json:"lon"`
	// Distance to the boundary in meters, positive outside and negative inside.
	// Only set for circular geofences.
	Distance *float64 `json:"distance,omitempty"`
}

func NewTransitionEvent(typ TransitionType, report *LocationReport, geofenceID string, distance *float64) TransitionEvent {
	return TransitionEvent{
		ID:         uuid.New(),
		DeviceID:   report.DeviceID,
		GeofenceID: geofenceID,
		Type:       typ,
		Timestamp:  report.Timestamp,
		Lat:        report.Lat,
		Lon:        report.Lon,
		Distance:   distance,
	}
}
