package domain

import "errors"

var (
	// ErrNotFound is returned when a geofence or device state does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidGeofence is returned for definitions that violate the one-variant invariant.
	ErrInvalidGeofence = errors.New("invalid geofence")
)
