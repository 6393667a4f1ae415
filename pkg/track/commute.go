package track

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/evroute/gpx2energy/pkg/core"
	"github.com/evroute/gpx2energy/pkg/tracing"
	"github.com/evroute/gpx2energy/pkg/vehicle"
)

// Source is one track's worth of raw input: an identifier (usually the file
// name) and its ordered samples.
type Source struct {
	Name    string
	Samples []Sample
}

// Commute groups tracks analyzed together, for example the two directions of
// a daily commute. Tracks that failed processing are kept as errors alongside
// the surviving tracks; one bad file does not abort its siblings.
type Commute struct {
	Profile  *vehicle.Profile
	Tracks   []*Track
	Failures []error
}

// CommuteStats summarizes a commute. Distance, duration and energy are sums
// across tracks; average speed and energy rate are recomputed from the summed
// totals; the peak fields are the maxima across the per-track peak values, and
// average motor power is the mean of the per-track averages.
type CommuteStats struct {
	Distance          float64 `json:"distance"`            // km
	Duration          float64 `json:"duration"`            // min
	AverageSpeed      float64 `json:"average_speed"`       // km/h
	Energy            float64 `json:"energy"`              // Wh
	EnergyRate        float64 `json:"energy_rate"`         // Wh/km
	AverageMotorPower float64 `json:"average_motor_power"` // W
	TopSpeed          float64 `json:"top_speed"`           // km/h
	PeakOutputPower   float64 `json:"peak_output_power"`   // W
	PeakRegenPower    float64 `json:"peak_regen_power"`    // W
	SteepestIncline   float64 `json:"steepest_incline"`    // %
	SteepestDecline   float64 `json:"steepest_decline"`    // %
}

// NewCommute derives every source into a track. Tracks are independent of one
// another, so they are derived concurrently; within each track the point scan
// stays strictly sequential. Per-track failures are collected, not fatal; an
// error is returned only if no track survives.
func NewCommute(ctx context.Context, profile *vehicle.Profile, sources []Source) (*Commute, error) {
	ctx, span := tracing.StartSpan(ctx, "commute.derive")
	defer span.End()
	tracing.SetTrackCount(span, len(sources))

	if len(sources) == 0 {
		return nil, core.NewError(core.ErrNoResults, "commute has no tracks")
	}

	tracks := make([]*Track, len(sources))
	errs := make([]error, len(sources))

	g, _ := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			// Failures are recorded per track rather than returned, so one
			// implausible file cannot cancel the others.
			t, err := New(src.Name, src.Samples, profile)
			if err != nil {
				errs[i] = err
				return nil
			}
			// Aggregate eagerly so a too-short track is reported here too.
			if _, err := t.Stats(); err != nil {
				errs[i] = err
				return nil
			}
			tracks[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Commute{Profile: profile}
	for i := range sources {
		if errs[i] != nil {
			tracing.RecordSpanError(span, errs[i])
			c.Failures = append(c.Failures, errs[i])
			continue
		}
		c.Tracks = append(c.Tracks, tracks[i])
	}

	if len(c.Tracks) == 0 {
		return nil, core.NewError(core.ErrNoResults, "no track in the commute could be processed")
	}
	return c, nil
}

// Stats aggregates the per-track summaries into a commute summary.
func (c *Commute) Stats() (*CommuteStats, error) {
	perTrack := make([]*Stats, len(c.Tracks))
	for i, t := range c.Tracks {
		ts, err := t.Stats()
		if err != nil {
			return nil, err
		}
		perTrack[i] = ts
	}
	return AggregateStats(perTrack)
}

// AggregateStats combines already-computed track summaries into a commute
// summary. Distance, duration and energy are summed; average speed and energy
// rate are recomputed from the totals rather than averaged per track.
func AggregateStats(perTrack []*Stats) (*CommuteStats, error) {
	if len(perTrack) == 0 {
		return nil, core.NewError(core.ErrNoResults, "no track summaries to aggregate")
	}

	var stats CommuteStats
	for i, ts := range perTrack {
		stats.Distance += ts.Distance
		stats.Duration += ts.Duration
		stats.Energy += ts.Energy
		stats.AverageMotorPower += ts.AverageMotorPower

		if i == 0 || ts.TopSpeed.Value > stats.TopSpeed {
			stats.TopSpeed = ts.TopSpeed.Value
		}
		if i == 0 || ts.PeakOutputPower.Value > stats.PeakOutputPower {
			stats.PeakOutputPower = ts.PeakOutputPower.Value
		}
		if i == 0 || ts.PeakRegenPower.Value > stats.PeakRegenPower {
			stats.PeakRegenPower = ts.PeakRegenPower.Value
		}
		if i == 0 || ts.SteepestIncline.Value > stats.SteepestIncline {
			stats.SteepestIncline = ts.SteepestIncline.Value
		}
		if i == 0 || ts.SteepestDecline.Value > stats.SteepestDecline {
			stats.SteepestDecline = ts.SteepestDecline.Value
		}
	}

	stats.AverageSpeed = stats.Distance / (stats.Duration / 60)
	stats.EnergyRate = stats.Energy / stats.Distance
	// Mean of the per-track averages, deliberately unweighted by point count.
	stats.AverageMotorPower /= float64(len(perTrack))

	return &stats, nil
}
