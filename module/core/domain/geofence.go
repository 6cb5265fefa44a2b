package domain

import (
	"fmt"
	"math"
	"strings"
)

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

type GeofenceType string

const (
	GeofenceCircular GeofenceType = "circular"
	GeofencePolygon  GeofenceType = "polygon"
)

type Circle struct {
	Center Point   `json:"center" yaml:"center"`
	Radius float64 `json:"radius" yaml:"radius"` // meters
}

// Polygon is an implicitly closed ring; the last vertex need not repeat the first.
type Polygon struct {
	Vertices []Point `json:"vertices" yaml:"vertices"`
}

// Geofence carries exactly one geometry variant, selected by Type.
type Geofence struct {
	ID       string       `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	Type     GeofenceType `json:"type" yaml:"type"`
	Circular *Circle      `json:"circular,omitempty" yaml:"circular,omitempty"`
	Polygon  *Polygon     `json:"polygon,omitempty" yaml:"polygon,omitempty"`
}

const minPolygonVertices = 3

// Validate rejects definitions that must never be stored. Polygon rings are
// not checked for self-intersection or winding.
func (g *Geofence) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return invalid("id: required")
	}
	if g.Circular != nil && g.Polygon != nil {
		return invalid("exactly one of circular or polygon must be set")
	}

	switch g.Type {
	case GeofenceCircular:
		if g.Circular == nil {
			return invalid("circular: required for type circular")
		}
		if err := ValidateCoordinates(g.Circular.Center.Lat, g.Circular.Center.Lon); err != nil {
			return invalid("circular.center: %v", err)
		}
		if math.IsNaN(g.Circular.Radius) || math.IsInf(g.Circular.Radius, 0) || g.Circular.Radius <= 0 {
			return invalid("circular.radius: must be a positive number of meters")
		}
	case GeofencePolygon:
		if g.Polygon == nil {
			return invalid("polygon: required for type polygon")
		}
		if len(g.Polygon.Vertices) < minPolygonVertices {
			return invalid("polygon.vertices: need at least %d, got %d", minPolygonVertices, len(g.Polygon.Vertices))
		}
		for i, v := range g.Polygon.Vertices {
			if err := ValidateCoordinates(v.Lat, v.Lon); err != nil {
				return invalid("polygon.vertices[%d]: %v", i, err)
			}
		}
	default:
		return invalid("type: unknown geofence type %q", g.Type)
	}
	return nil
}

// Clone returns a deep copy so stored definitions cannot be mutated by callers.
func (g Geofence) Clone() Geofence {
	if g.Circular != nil {
		c := *g.Circular
		g.Circular = &c
	}
	if g.Polygon != nil {
		vertices := make([]Point, len(g.Polygon.Vertices))
		copy(vertices, g.Polygon.Vertices)
		g.Polygon = &Polygon{Vertices: vertices}
	}
	return g
}

// ValidateCoordinates checks that lat/lon are finite and within WGS84 ranges.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return fmt.Errorf("coordinates cannot be NaN")
	}
	if math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("coordinates cannot be infinite")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidGeofence, fmt.Sprintf(format, args...))
}
