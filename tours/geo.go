package tours

import (
	"math"
	"strconv"
	"strings"
)

const (
	EarthRadiusMiles = 3963.2
	EarthRadiusKm    = 6378.1

	MetresToMiles = 0.000621371
	MetresToKm    = 0.001

	earthRadiusMetres = 6378100.0
)

// Unit is the distance unit of the geo routes, mi or km
type Unit string

const (
	UnitMiles Unit = "mi"
	UnitKm    Unit = "km"
)

// ParseUnit treats anything other than mi as kilometres
func ParseUnit(s string) Unit {
	if strings.EqualFold(s, string(UnitMiles)) {
		return UnitMiles
	}
	return UnitKm
}

// EarthRadius in the unit, used to turn a distance into radians
func (u Unit) EarthRadius() float64 {
	if u == UnitMiles {
		return EarthRadiusMiles
	}
	return EarthRadiusKm
}

// Multiplier converts metres into the unit
func (u Unit) Multiplier() float64 {
	if u == UnitMiles {
		return MetresToMiles
	}
	return MetresToKm
}

// ParseLatLng reads "lat,lng"
func ParseLatLng(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, ErrInvalidLatLng.Clone()
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return Point{}, ErrInvalidLatLng.Clone()
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return Point{}, ErrInvalidLatLng.Clone()
	}

	return NewPoint(lat, lng), nil
}

// centralAngle is the great circle angle between a and b in radians
func centralAngle(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat()), radians(b.Lat())
	dLat := lat2 - lat1
	dLng := radians(b.Lng() - a.Lng())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceMetres between two points on a sphere
func DistanceMetres(a, b Point) float64 {
	return centralAngle(a, b) * earthRadiusMetres
}

// WithinRadius reports whether p lies inside the spherical cap around
// centre with the given radius in radians.
func WithinRadius(centre, p Point, angle float64) bool {
	return centralAngle(centre, p) <= angle
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
