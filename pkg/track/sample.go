package track

import (
	"time"

	"github.com/evroute/gpx2energy/pkg/geo"
)

// Sample is one raw GPS fix as produced by a route-file parser: position,
// elevation and timestamp. Samples within a track are expected to be ordered
// by time; the ordering is trusted, not validated.
type Sample struct {
	Location  geo.Location
	Elevation float64 // m
	Time      time.Time
}
