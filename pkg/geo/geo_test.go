package geo

import (
	"math"
	"strings"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name      string
		a         Location
		b         Location
		expected  float64
		tolerance float64
	}{
		{
			name:      "Same point",
			a:         Location{Latitude: 50.06, Longitude: 19.94},
			b:         Location{Latitude: 50.06, Longitude: 19.94},
			expected:  0,
			tolerance: 0.001,
		},
		{
			name:      "One degree of latitude",
			a:         Location{Latitude: 0, Longitude: 0},
			b:         Location{Latitude: 1, Longitude: 0},
			expected:  EarthRadius * math.Pi / 180,
			tolerance: 1,
		},
		{
			name:      "Krakow to Warsaw",
			a:         Location{Latitude: 50.0647, Longitude: 19.9450},
			b:         Location{Latitude: 52.2297, Longitude: 21.0122},
			expected:  252000,
			tolerance: 3000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineDistance(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.tolerance {
				t.Errorf("HaversineDistance() = %f, want %f (±%f)", got, tt.expected, tt.tolerance)
			}

			// Distance is symmetric
			back := HaversineDistance(tt.b, tt.a)
			if math.Abs(got-back) > 1e-9 {
				t.Errorf("HaversineDistance() not symmetric: %f vs %f", got, back)
			}
		})
	}
}

func TestLocationValidate(t *testing.T) {
	tests := []struct {
		name    string
		loc     Location
		wantErr bool
	}{
		{"Valid", Location{Latitude: 50.06, Longitude: 19.94}, false},
		{"Latitude too high", Location{Latitude: 90.1, Longitude: 0}, true},
		{"Latitude too low", Location{Latitude: -90.1, Longitude: 0}, true},
		{"Longitude too high", Location{Latitude: 0, Longitude: 180.1}, true},
		{"Longitude too low", Location{Latitude: 0, Longitude: -180.1}, true},
		{"Boundary values", Location{Latitude: 90, Longitude: -180}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMapURL(t *testing.T) {
	loc := Location{Latitude: 50.0647, Longitude: 19.945}
	u := MapURL(loc)

	if !strings.HasPrefix(u, "https://maps.google.com/maps?") {
		t.Errorf("MapURL() = %q, want maps.google.com URL", u)
	}
	if !strings.Contains(u, "50.064700") {
		t.Errorf("MapURL() = %q, missing latitude", u)
	}
}

func TestRouteURL(t *testing.T) {
	from := Location{Latitude: 50.0647, Longitude: 19.945}
	to := Location{Latitude: 50.0547, Longitude: 19.935}
	u := RouteURL(from, to)

	if !strings.HasPrefix(u, "https://maps.google.com/maps?") {
		t.Errorf("RouteURL() = %q, want maps.google.com URL", u)
	}
	for _, fragment := range []string{"from%3A", "to%3A", "50.064700", "50.054700"} {
		if !strings.Contains(u, fragment) {
			t.Errorf("RouteURL() = %q, missing %q", u, fragment)
		}
	}
}
