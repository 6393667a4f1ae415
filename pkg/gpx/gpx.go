// Package gpx parses GPX 1.1 route recordings into raw track samples.
package gpx

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/evroute/gpx2energy/pkg/core"
	"github.com/evroute/gpx2energy/pkg/geo"
	"github.com/evroute/gpx2energy/pkg/track"
)

type gpxPoint struct {
	Lat       float64  `xml:"lat,attr"`
	Lon       float64  `xml:"lon,attr"`
	Elevation *float64 `xml:"ele"`
	Time      string   `xml:"time"`
}

type gpxFile struct {
	XMLName xml.Name `xml:"gpx"`
	Tracks  []struct {
		Segments []struct {
			Points []gpxPoint `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

// Timestamp layouts seen in the wild; recorders disagree on fractional
// seconds and timezone suffixes.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Parse reads a GPX document and returns its samples. The recording is
// expected to hold a single track segment, the way commute recorders write
// one trip per file. Every point must carry position, elevation and time;
// anything less is a malformed input.
func Parse(r io.Reader, name string) (track.Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return track.Source{}, core.NewError(core.ErrMalformedInput, "reading GPX: %v", err).WithTrack(name).WithCause(err)
	}

	var doc gpxFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return track.Source{}, core.NewError(core.ErrMalformedInput, "parsing GPX: %v", err).WithTrack(name).WithCause(err)
	}

	var segments int
	var points []gpxPoint
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			segments++
			points = seg.Points
		}
	}
	if segments != 1 {
		return track.Source{}, core.NewError(core.ErrMalformedInput,
			"expected exactly one track segment, found %d", segments).WithTrack(name)
	}
	if len(points) == 0 {
		return track.Source{}, core.NewError(core.ErrMalformedInput, "track segment has no points").WithTrack(name)
	}

	samples := make([]track.Sample, len(points))
	for i, p := range points {
		loc := geo.Location{Latitude: p.Lat, Longitude: p.Lon}
		if err := loc.Validate(); err != nil {
			return track.Source{}, core.NewError(core.ErrMalformedInput, "%v", err).WithTrack(name).WithPoint(i)
		}
		if p.Elevation == nil {
			return track.Source{}, core.NewError(core.ErrMalformedInput, "point has no elevation").WithTrack(name).WithPoint(i)
		}
		if p.Time == "" {
			return track.Source{}, core.NewError(core.ErrMalformedInput, "point has no timestamp").WithTrack(name).WithPoint(i)
		}
		ts, ok := parseTime(p.Time)
		if !ok {
			return track.Source{}, core.NewError(core.ErrMalformedInput, "unparsable timestamp %q", p.Time).WithTrack(name).WithPoint(i)
		}

		samples[i] = track.Sample{
			Location:  loc,
			Elevation: *p.Elevation,
			Time:      ts,
		}
	}

	return track.Source{Name: name, Samples: samples}, nil
}

// ParseFile reads a GPX file and returns its samples, using the file's base
// name as the track identifier.
func ParseFile(path string) (track.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return track.Source{}, core.NewError(core.ErrMalformedInput, "opening %s: %v", path, err).WithCause(err)
	}
	defer f.Close()

	return Parse(f, filepath.Base(path))
}
