// Package containment applies per-geofence-type membership rules on top of
// the geo primitives.
package containment

import (
	"errors"
	"fmt"

	"github.com/nandanugg/geofence/module/core/domain"
	"github.com/nandanugg/geofence/module/core/geo"
)

// ErrUnsupportedGeofence means a geofence reached evaluation without a usable
// geometry variant. Validation on upsert should make this unreachable.
var ErrUnsupportedGeofence = errors.New("unsupported geofence type")

// Policy evaluates containment. Hysteresis is an outward buffer in meters
// added to every circular radius regardless of the device's previous state.
// Polygons get no buffer.
type Policy struct {
	Hysteresis float64
}

func NewPolicy(hysteresis float64) Policy {
	return Policy{Hysteresis: hysteresis}
}

func (p Policy) Contains(gf *domain.Geofence, pt domain.Point) (bool, error) {
	switch {
	case gf.Type == domain.GeofenceCircular && gf.Circular != nil:
		return geo.Distance(pt, gf.Circular.Center) <= gf.Circular.Radius+p.Hysteresis, nil
	case gf.Type == domain.GeofencePolygon && gf.Polygon != nil:
		return geo.PointInPolygon(pt, gf.Polygon.Vertices), nil
	default:
		return false, fmt.Errorf("%w: %q (geofence %s)", ErrUnsupportedGeofence, gf.Type, gf.ID)
	}
}

// DistanceToBoundary returns the signed distance in meters from pt to the
// boundary, positive outside and negative inside. Hysteresis is ignored.
// ok is false for polygons, whose boundary distance is not computed.
func (p Policy) DistanceToBoundary(gf *domain.Geofence, pt domain.Point) (dist float64, ok bool, err error) {
	switch {
	case gf.Type == domain.GeofenceCircular && gf.Circular != nil:
		return geo.Distance(pt, gf.Circular.Center) - gf.Circular.Radius, true, nil
	case gf.Type == domain.GeofencePolygon && gf.Polygon != nil:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("%w: %q (geofence %s)", ErrUnsupportedGeofence, gf.Type, gf.ID)
	}
}
