package track

import (
	"math"
	"time"

	"github.com/evroute/gpx2energy/pkg/core"
	"github.com/evroute/gpx2energy/pkg/geo"
	"github.com/evroute/gpx2energy/pkg/vehicle"
)

// Plausibility envelopes for quantities derived from noisy samples. Consumer
// GPS units report elevation with roughly 1 m resolution, which makes raw
// point-to-point inclines and speeds jump wildly; values outside these ranges
// are replaced with the previous point's resolved value.
const (
	maxInclineSine   = 0.25
	minInclineCosine = 0.75
)

// Point holds the physics quantities derived for the segment ending at one
// sample. Points are owned by their Track and addressed by index; "previous"
// is an index lookup, never a stored reference. All fields are resolved at
// track construction time and never mutated afterwards.
type Point struct {
	Index     int
	Location  geo.Location
	Elevation float64 // m
	Time      time.Time

	FlatDistance      float64 // map distance from the previous point, m
	Climb             float64 // elevation gain from the previous point, m
	Distance          float64 // road distance from the previous point, m
	InclineSine       float64 // sine of the climb angle
	InclineCosine     float64 // cosine of the climb angle
	Period            float64 // time since the previous point, s
	Speed             float64 // m/s
	Acceleration      float64 // m/s²
	AirDrag           float64 // N
	RollingResistance float64 // N
	InclineForce      float64 // N
	AccelerationForce float64 // N
	Force             float64 // total drivetrain force, N
	PowerAtWheels     float64 // driving power without drivetrain losses, W
	OutputPower       float64 // power generated by the motor, W
	RegenPower        float64 // regen power reaching the batteries, W
	MotorPower        float64 // motor power requirement, W
	Energy            float64 // energy used travelling from the previous point, J
}

// derive computes the full quantity chain for the sample at index i.
// prev is the already-resolved previous point, nil for i = 0. The chain is
// strictly sequential: the fallback rules read prev's resolved values, so
// points must be derived index-ascending.
func derive(i int, s Sample, prev *Point, p *vehicle.Profile) (Point, error) {
	pt := Point{
		Index:     i,
		Location:  s.Location,
		Elevation: s.Elevation,
		Time:      s.Time,
	}

	if prev == nil {
		// Origin point: no previous segment exists. Every segment quantity
		// takes its defined default.
		pt.FlatDistance = 0
		pt.Climb = 0
		pt.Distance = 0
		pt.InclineSine = 0
		pt.InclineCosine = 1
		pt.Period = 1
		pt.Speed = 0
		pt.Acceleration = 0
	} else {
		pt.FlatDistance = geo.HaversineDistance(prev.Location, s.Location)
		pt.Climb = s.Elevation - prev.Elevation
		pt.Distance = math.Sqrt(pt.FlatDistance*pt.FlatDistance + pt.Climb*pt.Climb)

		// A zero-length segment has an undefined climb angle; the out-of-range
		// stand-ins force the fallback below.
		sine := 1.0
		cosine := 0.0
		if pt.Distance != 0 {
			sine = pt.Climb / pt.Distance
			cosine = pt.FlatDistance / pt.Distance
		}
		if -maxInclineSine < sine && sine < maxInclineSine {
			pt.InclineSine = sine
		} else {
			pt.InclineSine = prev.InclineSine
		}
		if minInclineCosine < cosine && cosine <= 1 {
			pt.InclineCosine = cosine
		} else {
			pt.InclineCosine = prev.InclineCosine
		}

		pt.Period = s.Time.Sub(prev.Time).Seconds()

		speed := pt.Distance / pt.Period
		if 0 <= speed && speed < p.TopSpeed {
			pt.Speed = speed
		} else {
			pt.Speed = prev.Speed
		}

		// Acceleration needs two preceding points to be meaningful.
		accel := 0.0
		if prev.Index > 0 {
			accel = (pt.Speed - prev.Speed) / pt.Period
		}
		if -geo.Gravity/2 < accel && accel < geo.Gravity/2 {
			pt.Acceleration = accel
		} else {
			pt.Acceleration = prev.Acceleration
		}
	}

	pt.AirDrag = 0.5 * geo.AirDensity * p.DragArea * pt.Speed * pt.Speed
	pt.RollingResistance = p.RollingResistance * p.Weight * pt.InclineCosine
	pt.InclineForce = p.Weight * pt.InclineSine
	pt.AccelerationForce = p.Mass * pt.Acceleration
	pt.Force = pt.AirDrag + pt.RollingResistance + pt.InclineForce + pt.AccelerationForce

	pt.PowerAtWheels = pt.Force * pt.Speed
	if pt.PowerAtWheels <= -2*p.RatedPower || pt.PowerAtWheels >= 1.2*p.RatedPower {
		return Point{}, core.NewError(core.ErrSanityCheck,
			"power at wheels %.0f W outside plausible envelope (%.0f W, %.0f W)",
			pt.PowerAtWheels, -2*p.RatedPower, 1.2*p.RatedPower).WithPoint(i)
	}

	if pt.PowerAtWheels > 0 {
		pt.OutputPower = pt.PowerAtWheels / p.MechanicalEfficiency
		pt.RegenPower = 0
		pt.MotorPower = pt.PowerAtWheels / p.MechanicalEfficiency
	} else {
		pt.OutputPower = 0
		pt.RegenPower = -pt.PowerAtWheels * p.Efficiency
		// Regen stresses the motor too.
		pt.MotorPower = -pt.PowerAtWheels * p.MechanicalEfficiency
	}

	pt.Energy = (pt.OutputPower/p.ElectricalEfficiency - pt.RegenPower*p.ElectricalEfficiency) * pt.Period

	return pt, nil
}
