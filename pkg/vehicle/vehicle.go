// Package vehicle describes the physical and efficiency parameters of the
// vehicle whose energy use is being estimated.
package vehicle

import (
	"github.com/evroute/gpx2energy/pkg/core"
	"github.com/evroute/gpx2energy/pkg/geo"
)

// Params holds the configurable parameters of a vehicle. All fields are
// required; Params is validated by NewProfile.
type Params struct {
	Mass              float64 `json:"mass"`               // curb mass including driver and batteries, kg
	DragCoefficient   float64 `json:"drag_coefficient"`   // dimensionless cx
	FrontalArea       float64 `json:"frontal_area"`       // m²
	RollingResistance float64 `json:"rolling_resistance"` // rolling resistance coefficient, kg/kg
	RatedPower        float64 `json:"rated_power"`        // power of the vehicle that recorded the trace, W
	TopSpeed          float64 `json:"top_speed"`          // m/s

	// Drivetrain conversion efficiencies, each in (0, 1].
	BatteryEfficiency    float64 `json:"battery_efficiency"`
	ControllerEfficiency float64 `json:"controller_efficiency"`
	MotorEfficiency      float64 `json:"motor_efficiency"`
	GearboxEfficiency    float64 `json:"gearbox_efficiency"`
}

// Profile is a validated, immutable vehicle description. Construct with
// NewProfile; the derived quantities are pure functions of the parameters.
type Profile struct {
	Params

	// Derived at construction time.
	DragArea             float64 // cx × frontal area, m²
	Weight               float64 // mass × g, N
	ElectricalEfficiency float64 // battery × controller × motor
	MechanicalEfficiency float64 // gearbox
	Efficiency           float64 // electrical × mechanical
}

// NewProfile validates the parameters and returns a profile with the derived
// quantities populated. Validation failures carry core.ErrConfiguration.
func NewProfile(p Params) (*Profile, error) {
	if p.Mass <= 0 {
		return nil, core.NewError(core.ErrConfiguration, "mass must be positive, got %g", p.Mass)
	}
	if p.DragCoefficient <= 0 {
		return nil, core.NewError(core.ErrConfiguration, "drag coefficient must be positive, got %g", p.DragCoefficient)
	}
	if p.FrontalArea <= 0 {
		return nil, core.NewError(core.ErrConfiguration, "frontal area must be positive, got %g", p.FrontalArea)
	}
	if p.RollingResistance <= 0 {
		return nil, core.NewError(core.ErrConfiguration, "rolling resistance coefficient must be positive, got %g", p.RollingResistance)
	}
	if p.RatedPower <= 0 {
		return nil, core.NewError(core.ErrConfiguration, "rated power must be positive, got %g", p.RatedPower)
	}
	if p.TopSpeed <= 0 {
		return nil, core.NewError(core.ErrConfiguration, "top speed must be positive, got %g", p.TopSpeed)
	}

	for _, e := range []struct {
		name  string
		value float64
	}{
		{"battery efficiency", p.BatteryEfficiency},
		{"controller efficiency", p.ControllerEfficiency},
		{"motor efficiency", p.MotorEfficiency},
		{"gearbox efficiency", p.GearboxEfficiency},
	} {
		if e.value <= 0 || e.value > 1 {
			return nil, core.NewError(core.ErrConfiguration, "%s must be in (0, 1], got %g", e.name, e.value)
		}
	}

	electrical := p.BatteryEfficiency * p.ControllerEfficiency * p.MotorEfficiency
	mechanical := p.GearboxEfficiency

	return &Profile{
		Params:               p,
		DragArea:             p.DragCoefficient * p.FrontalArea,
		Weight:               p.Mass * geo.Gravity,
		ElectricalEfficiency: electrical,
		MechanicalEfficiency: mechanical,
		Efficiency:           electrical * mechanical,
	}, nil
}

// Reference returns the documented example profile, a Smart Fortwo W450
// carrying its driver and a battery pack.
func Reference() *Profile {
	p, err := NewProfile(Params{
		Mass:                 880,
		DragCoefficient:      0.37,
		FrontalArea:          1.95,
		RollingResistance:    0.01355,
		RatedPower:           40000,
		TopSpeed:             100 * 1000 / 3600.0,
		BatteryEfficiency:    0.95,
		ControllerEfficiency: 0.95,
		MotorEfficiency:      0.87,
		GearboxEfficiency:    0.9,
	})
	if err != nil {
		// The reference parameters are constants; this cannot happen.
		panic(err)
	}
	return p
}
