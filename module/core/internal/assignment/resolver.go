// Package assignment decides which geofence a device is tracked against.
package assignment

import "strings"

// Suffix derives the geofence id by dropping the last underscore-delimited
// token of the device id: "north_gate_dev7" is tracked against "north_gate".
// A device id without an underscore maps to itself.
type Suffix struct{}

func (Suffix) ResolveGeofence(deviceID string) (string, bool) {
	if deviceID == "" {
		return "", false
	}
	i := strings.LastIndex(deviceID, "_")
	if i < 0 {
		return deviceID, true
	}
	return deviceID[:i], true
}

// Static is an explicit device to geofence table.
type Static map[string]string

func (s Static) ResolveGeofence(deviceID string) (string, bool) {
	id, ok := s[deviceID]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

type resolver interface {
	ResolveGeofence(deviceID string) (string, bool)
}

// Chain asks each resolver in turn and returns the first match.
type Chain []resolver

func (c Chain) ResolveGeofence(deviceID string) (string, bool) {
	for _, r := range c {
		if id, ok := r.ResolveGeofence(deviceID); ok {
			return id, true
		}
	}
	return "", false
}
