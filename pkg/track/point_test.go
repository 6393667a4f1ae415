package track

import (
	"math"
	"testing"
	"time"

	"github.com/evroute/gpx2energy/pkg/core"
	"github.com/evroute/gpx2energy/pkg/geo"
	"github.com/evroute/gpx2energy/pkg/vehicle"
)

const tolerance = 1e-6

// latitudeStep returns the latitude delta in degrees that corresponds to the
// given distance in meters along a meridian. Along a meridian the haversine
// formula reduces to an exact arc length, so the derived distances match to
// floating point precision.
func latitudeStep(meters float64) float64 {
	return meters * 180 / (math.Pi * geo.EarthRadius)
}

// flatSamples generates n samples one second apart moving north by step
// meters each, at constant elevation.
func flatSamples(n int, step float64) []Sample {
	base := time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC)
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			Location:  geo.Location{Latitude: 50 + float64(i)*latitudeStep(step), Longitude: 19.9},
			Elevation: 200,
			Time:      base.Add(time.Duration(i) * time.Second),
		}
	}
	return samples
}

func TestDeriveOriginDefaults(t *testing.T) {
	profile := vehicle.Reference()
	samples := flatSamples(3, 10)

	tr, err := New("origin", samples, profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p0 := tr.Points[0]
	if p0.FlatDistance != 0 || p0.Climb != 0 || p0.Distance != 0 {
		t.Errorf("origin distances = %f, %f, %f, want all zero", p0.FlatDistance, p0.Climb, p0.Distance)
	}
	if p0.InclineSine != 0 {
		t.Errorf("origin InclineSine = %f, want 0", p0.InclineSine)
	}
	if p0.InclineCosine != 1 {
		t.Errorf("origin InclineCosine = %f, want 1", p0.InclineCosine)
	}
	if p0.Period != 1 {
		t.Errorf("origin Period = %f, want 1", p0.Period)
	}
	if p0.Speed != 0 || p0.Acceleration != 0 {
		t.Errorf("origin Speed = %f, Acceleration = %f, want both zero", p0.Speed, p0.Acceleration)
	}

	// Stationary origin exerts only rolling resistance, but no power.
	if p0.PowerAtWheels != 0 {
		t.Errorf("origin PowerAtWheels = %f, want 0", p0.PowerAtWheels)
	}
	if p0.Energy != 0 {
		t.Errorf("origin Energy = %f, want 0", p0.Energy)
	}
}

func TestDeriveFlatMotion(t *testing.T) {
	profile := vehicle.Reference()
	samples := flatSamples(3, 10)

	tr, err := New("flat", samples, profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p1 := tr.Points[1]
	if math.Abs(p1.FlatDistance-10) > tolerance {
		t.Errorf("FlatDistance = %f, want 10", p1.FlatDistance)
	}
	if math.Abs(p1.Speed-10) > tolerance {
		t.Errorf("Speed = %f, want 10", p1.Speed)
	}
	if p1.Acceleration != 0 {
		t.Errorf("Acceleration = %f, want 0 before the second segment", p1.Acceleration)
	}

	wantDrag := 0.5 * geo.AirDensity * profile.DragArea * 100
	if math.Abs(p1.AirDrag-wantDrag) > tolerance {
		t.Errorf("AirDrag = %f, want %f", p1.AirDrag, wantDrag)
	}

	wantRolling := profile.RollingResistance * profile.Weight
	if math.Abs(p1.RollingResistance-wantRolling) > tolerance {
		t.Errorf("RollingResistance = %f, want %f", p1.RollingResistance, wantRolling)
	}

	if p1.InclineForce != 0 {
		t.Errorf("InclineForce = %f, want 0 on flat ground", p1.InclineForce)
	}

	wantPower := (wantDrag + wantRolling) * 10
	if math.Abs(p1.PowerAtWheels-wantPower) > 1e-3 {
		t.Errorf("PowerAtWheels = %f, want %f", p1.PowerAtWheels, wantPower)
	}

	wantOutput := wantPower / profile.MechanicalEfficiency
	if math.Abs(p1.OutputPower-wantOutput) > 1e-3 {
		t.Errorf("OutputPower = %f, want %f", p1.OutputPower, wantOutput)
	}
	if p1.RegenPower != 0 {
		t.Errorf("RegenPower = %f, want 0 while driving", p1.RegenPower)
	}

	wantEnergy := wantOutput / profile.ElectricalEfficiency
	if math.Abs(p1.Energy-wantEnergy) > 1e-3 {
		t.Errorf("Energy = %f, want %f", p1.Energy, wantEnergy)
	}
}

func TestDeriveVerticalSegmentFallbacks(t *testing.T) {
	profile := vehicle.Reference()
	base := time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC)
	loc := geo.Location{Latitude: 50, Longitude: 19.9}

	// Elevation jumps 10 m without map movement, the signature of a GPS
	// altitude glitch. Both incline ratios fall outside their plausible
	// ranges and must be taken from the previous point.
	samples := []Sample{
		{Location: loc, Elevation: 200, Time: base},
		{Location: loc, Elevation: 210, Time: base.Add(time.Second)},
	}

	tr, err := New("vertical", samples, profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p1 := tr.Points[1]
	if p1.FlatDistance != 0 {
		t.Errorf("FlatDistance = %f, want 0", p1.FlatDistance)
	}
	if math.Abs(p1.Climb-10) > tolerance {
		t.Errorf("Climb = %f, want 10", p1.Climb)
	}
	if math.Abs(p1.Distance-10) > tolerance {
		t.Errorf("Distance = %f, want 10", p1.Distance)
	}
	if p1.InclineSine != 0 {
		t.Errorf("InclineSine = %f, want fallback 0", p1.InclineSine)
	}
	if p1.InclineCosine != 1 {
		t.Errorf("InclineCosine = %f, want fallback 1", p1.InclineCosine)
	}

	// The 10 m/s apparent speed is below the top speed, so it stands.
	if math.Abs(p1.Speed-10) > tolerance {
		t.Errorf("Speed = %f, want 10", p1.Speed)
	}
}

func TestDeriveSpeedFallback(t *testing.T) {
	profile := vehicle.Reference()
	base := time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC)

	// The second segment jumps 1100 m in one second, far beyond the
	// vehicle's top speed.
	samples := []Sample{
		{Location: geo.Location{Latitude: 50, Longitude: 19.9}, Elevation: 200, Time: base},
		{Location: geo.Location{Latitude: 50 + latitudeStep(10), Longitude: 19.9}, Elevation: 200, Time: base.Add(time.Second)},
		{Location: geo.Location{Latitude: 50 + latitudeStep(1110), Longitude: 19.9}, Elevation: 200, Time: base.Add(2 * time.Second)},
	}

	tr, err := New("jump", samples, profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p2 := tr.Points[2]
	if math.Abs(p2.Speed-10) > tolerance {
		t.Errorf("Speed = %f, want previous point's 10", p2.Speed)
	}
}

func TestDeriveDeceleration(t *testing.T) {
	profile := vehicle.Reference()
	base := time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC)

	// 20 m/s then 16 m/s: a -4 m/s² braking segment, within the plausible
	// range, drives the wheels and recovers energy.
	samples := []Sample{
		{Location: geo.Location{Latitude: 50, Longitude: 19.9}, Elevation: 200, Time: base},
		{Location: geo.Location{Latitude: 50 + latitudeStep(20), Longitude: 19.9}, Elevation: 200, Time: base.Add(time.Second)},
		{Location: geo.Location{Latitude: 50 + latitudeStep(36), Longitude: 19.9}, Elevation: 200, Time: base.Add(2 * time.Second)},
	}

	tr, err := New("braking", samples, profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p2 := tr.Points[2]
	if math.Abs(p2.Acceleration-(-4)) > 1e-4 {
		t.Fatalf("Acceleration = %f, want -4", p2.Acceleration)
	}

	drag := 0.5 * geo.AirDensity * profile.DragArea * 16 * 16
	rolling := profile.RollingResistance * profile.Weight
	force := drag + rolling + profile.Mass*p2.Acceleration
	wantPower := force * 16
	if wantPower >= 0 {
		t.Fatalf("test setup broken: PowerAtWheels %f not negative", wantPower)
	}
	if math.Abs(p2.PowerAtWheels-wantPower) > 1e-2 {
		t.Errorf("PowerAtWheels = %f, want %f", p2.PowerAtWheels, wantPower)
	}

	if p2.OutputPower != 0 {
		t.Errorf("OutputPower = %f, want 0 while braking", p2.OutputPower)
	}
	wantRegen := -wantPower * profile.Efficiency
	if math.Abs(p2.RegenPower-wantRegen) > 1e-2 {
		t.Errorf("RegenPower = %f, want %f", p2.RegenPower, wantRegen)
	}
	wantMotor := -wantPower * profile.MechanicalEfficiency
	if math.Abs(p2.MotorPower-wantMotor) > 1e-2 {
		t.Errorf("MotorPower = %f, want %f", p2.MotorPower, wantMotor)
	}

	if p2.Energy >= 0 {
		t.Errorf("Energy = %f, want negative while recovering", p2.Energy)
	}
}

func TestDeriveAccelerationFallback(t *testing.T) {
	profile := vehicle.Reference()
	base := time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC)

	// From 20 m/s to 5 m/s in one second is a -15 m/s² change, outside the
	// plausible braking range; the previous acceleration carries over.
	samples := []Sample{
		{Location: geo.Location{Latitude: 50, Longitude: 19.9}, Elevation: 200, Time: base},
		{Location: geo.Location{Latitude: 50 + latitudeStep(20), Longitude: 19.9}, Elevation: 200, Time: base.Add(time.Second)},
		{Location: geo.Location{Latitude: 50 + latitudeStep(25), Longitude: 19.9}, Elevation: 200, Time: base.Add(2 * time.Second)},
	}

	tr, err := New("spike", samples, profile)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p2 := tr.Points[2]
	if p2.Acceleration != tr.Points[1].Acceleration {
		t.Errorf("Acceleration = %f, want previous point's %f", p2.Acceleration, tr.Points[1].Acceleration)
	}
}

func TestDeriveSanityCheck(t *testing.T) {
	// A 100 W vehicle cannot plausibly produce the multi-kW wheel power a
	// 20 m/s segment implies.
	params := vehicle.Reference().Params
	params.RatedPower = 100

	profile, err := vehicle.NewProfile(params)
	if err != nil {
		t.Fatalf("NewProfile() error = %v", err)
	}

	samples := flatSamples(3, 20)

	_, err = New("implausible", samples, profile)
	if err == nil {
		t.Fatal("New() succeeded, want sanity check failure")
	}
	if !core.IsCode(err, core.ErrSanityCheck) {
		t.Errorf("New() error = %v, want code %s", err, core.ErrSanityCheck)
	}

	var ce *core.Error
	if !asCalcError(err, &ce) {
		t.Fatalf("New() error = %T, want *core.Error", err)
	}
	if ce.Track != "implausible" {
		t.Errorf("error track = %q, want %q", ce.Track, "implausible")
	}
	if ce.Point != 1 {
		t.Errorf("error point = %d, want 1", ce.Point)
	}
}

func asCalcError(err error, target **core.Error) bool {
	ce, ok := err.(*core.Error)
	if !ok {
		return false
	}
	*target = ce
	return true
}

func TestNewEmptyTrack(t *testing.T) {
	_, err := New("empty", nil, vehicle.Reference())
	if err == nil {
		t.Fatal("New() succeeded, want malformed input error")
	}
	if !core.IsCode(err, core.ErrMalformedInput) {
		t.Errorf("New() error = %v, want code %s", err, core.ErrMalformedInput)
	}
}
