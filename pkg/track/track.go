// Package track derives physically plausible speed, force, power and energy
// values from raw GPS samples and summarizes them per track and per commute.
package track

import (
	"sync"
	"time"

	"github.com/evroute/gpx2energy/pkg/core"
	"github.com/evroute/gpx2energy/pkg/geo"
	"github.com/evroute/gpx2energy/pkg/monitoring"
	"github.com/evroute/gpx2energy/pkg/vehicle"
)

// Peak-search window widths, in points. Averaging over a window rather than
// taking single-sample extrema damps the sensor noise that survives the
// per-point fallback rules.
const (
	DefaultPeakWidth = 20
	SpeedPeakWidth   = 15
)

// Track is one continuously recorded trip: an ordered, non-empty sequence of
// derived points sharing one vehicle profile. Immutable once built.
type Track struct {
	Name    string
	Profile *vehicle.Profile
	Points  []Point

	statsOnce sync.Once
	stats     *Stats
	statsErr  error
}

// Peak is the result of a sliding-window peak search: the extremal window
// mean together with the window's first and last points, which identify where
// on the route the peak occurred.
type Peak struct {
	Value float64      `json:"value"`
	Start geo.Location `json:"start"`
	End   geo.Location `json:"end"`
}

// Stats summarizes a whole track.
type Stats struct {
	Name              string  `json:"name,omitempty"`
	Distance          float64 `json:"distance"`            // km
	Duration          float64 `json:"duration"`            // min
	AverageSpeed      float64 `json:"average_speed"`       // km/h
	Energy            float64 `json:"energy"`              // Wh
	EnergyRate        float64 `json:"energy_rate"`         // Wh/km
	AverageMotorPower float64 `json:"average_motor_power"` // W
	TopSpeed          Peak    `json:"top_speed"`           // km/h
	PeakOutputPower   Peak    `json:"peak_output_power"`   // W
	PeakRegenPower    Peak    `json:"peak_regen_power"`    // W
	SteepestIncline   Peak    `json:"steepest_incline"`    // %
	SteepestDecline   Peak    `json:"steepest_decline"`    // %
}

// New derives a track from its raw samples. Points are derived strictly
// index-ascending because each point's fallback rules read the previous
// point's already-resolved values. A sanity-check failure aborts the whole
// track.
func New(name string, samples []Sample, profile *vehicle.Profile) (*Track, error) {
	if len(samples) == 0 {
		return nil, core.NewError(core.ErrMalformedInput, "track has no points").WithTrack(name)
	}

	start := time.Now()
	points := make([]Point, len(samples))
	for i, s := range samples {
		var prev *Point
		if i > 0 {
			prev = &points[i-1]
		}
		pt, err := derive(i, s, prev, profile)
		if err != nil {
			monitoring.SanityCheckFailures.Inc()
			monitoring.TracksAnalyzed.WithLabelValues("error").Inc()
			if ce, ok := err.(*core.Error); ok {
				return nil, ce.WithTrack(name)
			}
			return nil, err
		}
		points[i] = pt
	}

	monitoring.PointsDerived.Add(float64(len(points)))
	monitoring.TracksAnalyzed.WithLabelValues("ok").Inc()
	monitoring.DerivationDuration.Observe(time.Since(start).Seconds())

	return &Track{Name: name, Profile: profile, Points: points}, nil
}

// Distance is the travelled distance in km.
func (t *Track) Distance() float64 {
	var sum float64
	for i := range t.Points {
		sum += t.Points[i].Distance
	}
	return sum / 1000
}

// Duration is the journey duration in minutes.
func (t *Track) Duration() float64 {
	first := t.Points[0].Time
	last := t.Points[len(t.Points)-1].Time
	return last.Sub(first).Seconds() / 60
}

// AverageSpeed is the mean travel speed in km/h.
func (t *Track) AverageSpeed() float64 {
	return t.Distance() / (t.Duration() / 60)
}

// Energy is the electrical energy needed for the track in Wh.
func (t *Track) Energy() float64 {
	var sum float64
	for i := range t.Points {
		sum += t.Points[i].Energy
	}
	return sum / 3600
}

// EnergyRate is the energy needed per km in Wh/km.
func (t *Track) EnergyRate() float64 {
	return t.Energy() / t.Distance()
}

// AverageMotorPower is the mean motor power requirement in W.
func (t *Track) AverageMotorPower() float64 {
	var sum float64
	for i := range t.Points {
		sum += t.Points[i].MotorPower
	}
	return sum / float64(len(t.Points))
}

// peakWindow scans every width-point window in ascending start order and
// returns the one whose mean of value is extremal. Ties favor the earliest
// window. The search needs at least width+1 points: window starts range over
// [0, len(points)-width).
func (t *Track) peakWindow(width int, minimize bool, value func(*Point) float64) (Peak, error) {
	n := len(t.Points)
	if n <= width {
		return Peak{}, core.NewError(core.ErrInsufficientData,
			"peak search needs more than %d points, track has %d", width, n).WithTrack(t.Name)
	}

	var best Peak
	for s := 0; s < n-width; s++ {
		var sum float64
		for i := s; i < s+width; i++ {
			sum += value(&t.Points[i])
		}
		mean := sum / float64(width)
		better := mean > best.Value
		if minimize {
			better = mean < best.Value
		}
		if s == 0 || better {
			best = Peak{
				Value: mean,
				Start: t.Points[s].Location,
				End:   t.Points[s+width-1].Location,
			}
		}
	}
	return best, nil
}

// TopSpeed is the highest window-mean speed in km/h, searched over
// SpeedPeakWidth-point windows.
func (t *Track) TopSpeed() (Peak, error) {
	peak, err := t.peakWindow(SpeedPeakWidth, false, func(p *Point) float64 { return p.Speed })
	if err != nil {
		return Peak{}, err
	}
	peak.Value *= 3600.0 / 1000
	return peak, nil
}

// PeakOutputPower is the highest window-mean motor output power in W.
func (t *Track) PeakOutputPower() (Peak, error) {
	return t.peakWindow(DefaultPeakWidth, false, func(p *Point) float64 { return p.OutputPower })
}

// PeakRegenPower is the highest window-mean power available for regen in W.
func (t *Track) PeakRegenPower() (Peak, error) {
	return t.peakWindow(DefaultPeakWidth, false, func(p *Point) float64 { return p.RegenPower })
}

// SteepestIncline is the highest window-mean incline in percent.
func (t *Track) SteepestIncline() (Peak, error) {
	peak, err := t.peakWindow(DefaultPeakWidth, false, func(p *Point) float64 { return p.InclineSine })
	if err != nil {
		return Peak{}, err
	}
	peak.Value *= 100
	return peak, nil
}

// SteepestDecline is the steepest descent in percent, reported positive.
func (t *Track) SteepestDecline() (Peak, error) {
	peak, err := t.peakWindow(DefaultPeakWidth, true, func(p *Point) float64 { return p.InclineSine })
	if err != nil {
		return Peak{}, err
	}
	peak.Value *= -100
	return peak, nil
}

// Stats computes the track summary. The result is cached for the lifetime of
// the track; points are immutable, so the cache never needs invalidation.
func (t *Track) Stats() (*Stats, error) {
	t.statsOnce.Do(func() {
		t.stats, t.statsErr = t.computeStats()
	})
	return t.stats, t.statsErr
}

func (t *Track) computeStats() (*Stats, error) {
	topSpeed, err := t.TopSpeed()
	if err != nil {
		return nil, err
	}
	peakOutput, err := t.PeakOutputPower()
	if err != nil {
		return nil, err
	}
	peakRegen, err := t.PeakRegenPower()
	if err != nil {
		return nil, err
	}
	incline, err := t.SteepestIncline()
	if err != nil {
		return nil, err
	}
	decline, err := t.SteepestDecline()
	if err != nil {
		return nil, err
	}

	return &Stats{
		Name:              t.Name,
		Distance:          t.Distance(),
		Duration:          t.Duration(),
		AverageSpeed:      t.AverageSpeed(),
		Energy:            t.Energy(),
		EnergyRate:        t.EnergyRate(),
		AverageMotorPower: t.AverageMotorPower(),
		TopSpeed:          topSpeed,
		PeakOutputPower:   peakOutput,
		PeakRegenPower:    peakRegen,
		SteepestIncline:   incline,
		SteepestDecline:   decline,
	}, nil
}
