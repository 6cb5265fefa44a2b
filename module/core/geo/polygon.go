package geo

import "github.com/nandanugg/geofence/module/core/domain"

// PointInPolygon reports whether p lies inside ring using ray casting.
//
// Coordinates are treated as planar with x = lat and y = lon, which is only
// accurate for polygons small enough that Earth curvature can be ignored. The
// ring is implicitly closed. Points exactly on an edge get an
// implementation-defined answer: the half-open y comparison below counts a
// shared vertex once, so the result is stable but may be either side.
func PointInPolygon(p domain.Point, ring []domain.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	a := ring[0]
	for i := 1; i <= n; i++ {
		b := ring[i%n]
		if p.Lon > min(a.Lon, b.Lon) && p.Lon <= max(a.Lon, b.Lon) && p.Lat <= max(a.Lat, b.Lat) {
			// a.Lon != b.Lon here, otherwise the half-open range above is empty.
			x := (p.Lon-a.Lon)*(b.Lat-a.Lat)/(b.Lon-a.Lon) + a.Lat
			if p.Lat <= x {
				inside = !inside
			}
		}
		a = b
	}
	return inside
}
