package domain

import "time"

type LocationReport struct {
	DeviceID  string    `json:"device_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
	// Accuracy is the reported horizontal accuracy in meters. Containment ignores it.
	Accuracy *float64 `json:"accuracy,omitempty"`
}

func (r *LocationReport) Point() Point {
	return Point{Lat: r.Lat, Lon: r.Lon}
}

// DeviceState is the containment recorded at the last accepted report of a device.
type DeviceState struct {
	DeviceID   string    `json:"device_id"`
	GeofenceID string    `json:"geofence_id"`
	IsInside   bool      `json:"is_inside"`
	LastUpdate time.Time `json:"last_update"`
	LastLat    float64   `json:"last_lat"`
	LastLon    float64   `json:"last_lon"`
}

type HistoryQuery struct {
	DeviceID string
	Start    time.Time
	End      time.Time
}
