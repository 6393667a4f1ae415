package track

import (
	"math"
	"testing"
	"time"

	"github.com/evroute/gpx2energy/pkg/core"
	"github.com/evroute/gpx2energy/pkg/geo"
	"github.com/evroute/gpx2energy/pkg/vehicle"
)

func TestTrackAggregates(t *testing.T) {
	profile := vehicle.Reference()
	samples := flatSamples(30, 10)

	tr, err := New("steady", samples, profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// 29 segments of 10 m at 1 s each.
	if got, want := tr.Distance(), 0.29; math.Abs(got-want) > 1e-6 {
		t.Errorf("Distance() = %f, want %f", got, want)
	}
	if got, want := tr.Duration(), 29.0/60; math.Abs(got-want) > 1e-9 {
		t.Errorf("Duration() = %f, want %f", got, want)
	}
	if got, want := tr.AverageSpeed(), 36.0; math.Abs(got-want) > 1e-3 {
		t.Errorf("AverageSpeed() = %f, want %f", got, want)
	}

	// Every moving point needs the same energy on flat ground at constant
	// speed; the origin point contributes nothing.
	drag := 0.5 * geo.AirDensity * profile.DragArea * 100
	rolling := profile.RollingResistance * profile.Weight
	perPoint := (drag + rolling) * 10 / profile.MechanicalEfficiency / profile.ElectricalEfficiency
	wantEnergy := 29 * perPoint / 3600
	if got := tr.Energy(); math.Abs(got-wantEnergy) > 1e-3 {
		t.Errorf("Energy() = %f, want %f", got, wantEnergy)
	}

	wantRate := wantEnergy / 0.29
	if got := tr.EnergyRate(); math.Abs(got-wantRate) > 1e-2 {
		t.Errorf("EnergyRate() = %f, want %f", got, wantRate)
	}

	wantMotor := 29 * ((drag + rolling) * 10 / profile.MechanicalEfficiency) / 30
	if got := tr.AverageMotorPower(); math.Abs(got-wantMotor) > 1e-2 {
		t.Errorf("AverageMotorPower() = %f, want %f", got, wantMotor)
	}
}

func TestTopSpeedWindow(t *testing.T) {
	profile := vehicle.Reference()
	samples := flatSamples(30, 10)

	tr, err := New("steady", samples, profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	peak, err := tr.TopSpeed()
	if err != nil {
		t.Fatalf("TopSpeed() error = %v", err)
	}

	// The window starting at the origin point averages in its zero speed;
	// every later window holds a steady 10 m/s.
	if math.Abs(peak.Value-36) > 1e-6 {
		t.Errorf("TopSpeed value = %f, want 36", peak.Value)
	}
	if peak.Start != tr.Points[1].Location {
		t.Errorf("TopSpeed start = %v, want point 1 location", peak.Start)
	}
	if peak.End != tr.Points[1+SpeedPeakWidth-1].Location {
		t.Errorf("TopSpeed end = %v, want point %d location", peak.End, SpeedPeakWidth)
	}
}

func TestPeakWindowTieKeepsEarliest(t *testing.T) {
	// Identical values in every window: the earliest window must win.
	points := make([]Point, SpeedPeakWidth+2)
	base := time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = Point{
			Index:    i,
			Location: geo.Location{Latitude: 50 + float64(i)*0.001, Longitude: 19.9},
			Time:     base.Add(time.Duration(i) * time.Second),
			Speed:    10,
		}
	}
	tr := &Track{Name: "tie", Profile: vehicle.Reference(), Points: points}

	peak, err := tr.TopSpeed()
	if err != nil {
		t.Fatalf("TopSpeed() error = %v", err)
	}
	if peak.Start != points[0].Location {
		t.Errorf("peak start = %v, want the first window's start %v", peak.Start, points[0].Location)
	}
}

func TestPeakWindowInsufficientData(t *testing.T) {
	profile := vehicle.Reference()

	tests := []struct {
		name   string
		points int
	}{
		{"Exactly speed width", SpeedPeakWidth},
		{"One point", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New("short", flatSamples(tt.points, 10), profile)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			_, err = tr.TopSpeed()
			if err == nil {
				t.Fatal("TopSpeed() succeeded, want insufficient data error")
			}
			if !core.IsCode(err, core.ErrInsufficientData) {
				t.Errorf("TopSpeed() error = %v, want code %s", err, core.ErrInsufficientData)
			}
		})
	}
}

func TestStatsRequiresDefaultWidth(t *testing.T) {
	profile := vehicle.Reference()

	// Enough for the speed window but not for the 20-point power windows.
	tr, err := New("short", flatSamples(DefaultPeakWidth, 10), profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := tr.TopSpeed(); err != nil {
		t.Errorf("TopSpeed() error = %v, want success", err)
	}

	_, err = tr.Stats()
	if !core.IsCode(err, core.ErrInsufficientData) {
		t.Errorf("Stats() error = %v, want code %s", err, core.ErrInsufficientData)
	}
}

func TestSteepestInclineAndDecline(t *testing.T) {
	// A constant 10% downgrade reported by its sine.
	points := make([]Point, DefaultPeakWidth+1)
	base := time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = Point{
			Index:       i,
			Location:    geo.Location{Latitude: 50 + float64(i)*0.001, Longitude: 19.9},
			Time:        base.Add(time.Duration(i) * time.Second),
			InclineSine: -0.1,
		}
	}
	tr := &Track{Name: "downhill", Profile: vehicle.Reference(), Points: points}

	decline, err := tr.SteepestDecline()
	if err != nil {
		t.Fatalf("SteepestDecline() error = %v", err)
	}
	if math.Abs(decline.Value-10) > 1e-9 {
		t.Errorf("SteepestDecline value = %f, want 10", decline.Value)
	}

	incline, err := tr.SteepestIncline()
	if err != nil {
		t.Fatalf("SteepestIncline() error = %v", err)
	}
	if math.Abs(incline.Value-(-10)) > 1e-9 {
		t.Errorf("SteepestIncline value = %f, want -10", incline.Value)
	}
}

func TestStatsCached(t *testing.T) {
	profile := vehicle.Reference()
	tr, err := New("cached", flatSamples(30, 10), profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first, err := tr.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	second, err := tr.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if first != second {
		t.Error("Stats() returned different instances, want the cached one")
	}
	if first.Name != "cached" {
		t.Errorf("Stats name = %q, want %q", first.Name, "cached")
	}
}
