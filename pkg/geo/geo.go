// Package geo provides geographic primitives and physical constants shared by
// the route energy calculator.
package geo

import (
	"fmt"
	"math"
	"net/url"
)

const (
	// EarthRadius is the mean Earth radius in meters.
	EarthRadius = 6371 * 1000

	// Gravity is the gravitational acceleration in m/s².
	// Local value for Krakow, where the reference traces were recorded.
	Gravity = 9.8105

	// AirDensity is the density of air at 0 °C in kg/m³.
	AirDensity = 1.2922
)

// Location represents a geographic coordinate pair in decimal degrees (WGS84).
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String returns the location as "lat lon" suitable for map queries.
func (l Location) String() string {
	return fmt.Sprintf("%f %f", l.Latitude, l.Longitude)
}

// Validate checks that the location is within valid coordinate ranges.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", l.Longitude)
	}
	return nil
}

// HaversineDistance calculates the great-circle distance in meters between two
// locations using the Haversine formula.
func HaversineDistance(a, b Location) float64 {
	dlat := toRadians(b.Latitude - a.Latitude)
	dlon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dlon/2)*math.Sin(dlon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// MapURL returns a map-service URL for the location.
func MapURL(l Location) string {
	q := url.Values{}
	q.Set("q", l.String())
	return "https://maps.google.com/maps?" + q.Encode()
}

// RouteURL returns a map-service URL for the route between two locations.
func RouteURL(from, to Location) string {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("from: %s to: %s", from, to))
	return "https://maps.google.com/maps?" + q.Encode()
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
