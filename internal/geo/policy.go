// Package geo holds the pure arena window and geofence predicates.
package geo

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/oggyb/arena-signals/internal/db"
)

// ErrPermissionDenied is returned by a PositionProvider when the user
// declined location access.
var ErrPermissionDenied = errors.New("location permission denied")

const earthRadiusMeters = 6371000.0

type Point struct {
	Latitude  float64
	Longitude float64
}

// PositionProvider yields the device position.
type PositionProvider interface {
	CurrentPosition(ctx context.Context) (Point, error)
}

// Reported is a position the client sent with its request. A nil value
// means the client had no location, which is treated as a denial.
type Reported struct {
	Point *Point
}

func (r Reported) CurrentPosition(context.Context) (Point, error) {
	if r.Point == nil {
		return Point{}, ErrPermissionDenied
	}
	return *r.Point, nil
}

// IsWithinWindow reports whether now lies in [start, end].
func IsWithinWindow(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}

// ArenaOpen reports whether the arena is switched on and inside its window.
func ArenaOpen(now time.Time, a *db.Arena) bool {
	return a.IsActive && IsWithinWindow(now, a.StartTime, a.EndTime)
}

// IsInsideArena returns whether p is within the arena radius and the
// great-circle distance to its centre. Malformed coordinates yield an
// infinite distance.
func IsInsideArena(p Point, a *db.Arena) (bool, float64) {
	d := DistanceMeters(p, Point{Latitude: a.Latitude, Longitude: a.Longitude})
	return d <= a.Radius, d
}

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(p, q Point) float64 {
	if !valid(p) || !valid(q) {
		return math.Inf(1)
	}

	toRad := func(v float64) float64 { return v * math.Pi / 180 }
	dLat := toRad(q.Latitude - p.Latitude)
	dLon := toRad(q.Longitude - p.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(p.Latitude))*math.Cos(toRad(q.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func valid(p Point) bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) || math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}
