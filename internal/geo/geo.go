package geo

import (
	"errors"
	"math"
)

const earthRadiusMeters = 6371000

var (
	ErrMockedLocation = errors.New("location appears to be mocked or spoofed")
	ErrLowAccuracy    = errors.New("location accuracy is too low")
)

// Location is a device-reported coordinate with its accuracy and the
// platform's mocked/spoofed flag.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"` // meters
	Mocked    bool    `json:"mocked"`
}

// Validate rejects mocked locations and locations whose accuracy radius
// exceeds maxAccuracy meters.
func Validate(loc Location, maxAccuracy float64) error {
	if loc.Mocked {
		return ErrMockedLocation
	}
	if maxAccuracy > 0 && loc.Accuracy > maxAccuracy {
		return ErrLowAccuracy
	}
	return nil
}

// Distance returns the haversine great-circle distance in meters between two
// coordinates.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// WithinRadius reports whether loc lies within radius meters of the given
// coordinate. The location's own accuracy is added to the allowance so a
// coarse fix at the fence edge is not rejected.
func WithinRadius(loc Location, lat, lng, radius float64) bool {
	return Distance(loc.Latitude, loc.Longitude, lat, lng) <= radius+loc.Accuracy
}
