package tools

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/evroute/gpx2energy/pkg/core"
	"github.com/evroute/gpx2energy/pkg/geo"
	"github.com/evroute/gpx2energy/pkg/gpx"
	"github.com/evroute/gpx2energy/pkg/track"
	"github.com/evroute/gpx2energy/pkg/tracing"
	"github.com/evroute/gpx2energy/pkg/vehicle"
)

// Shared across tool invocations; the server handles requests concurrently.
var (
	trackStats     *statsCache
	trackStatsOnce sync.Once
)

func stats() *statsCache {
	trackStatsOnce.Do(func() {
		trackStats = newStatsCache()
	})
	return trackStats
}

// VehicleInput carries optional overrides of the reference vehicle. Fields
// left at zero keep the reference value, so a caller only names what differs
// from the Smart Fortwo baseline. All values are SI: kg, m², W, m/s, and
// efficiencies as fractions in (0, 1].
type VehicleInput struct {
	Mass                 float64 `json:"mass,omitempty"`
	DragCoefficient      float64 `json:"drag_coefficient,omitempty"`
	FrontalArea          float64 `json:"frontal_area,omitempty"`
	RollingResistance    float64 `json:"rolling_resistance,omitempty"`
	RatedPower           float64 `json:"rated_power,omitempty"`
	TopSpeed             float64 `json:"top_speed,omitempty"`
	BatteryEfficiency    float64 `json:"battery_efficiency,omitempty"`
	ControllerEfficiency float64 `json:"controller_efficiency,omitempty"`
	MotorEfficiency      float64 `json:"motor_efficiency,omitempty"`
	GearboxEfficiency    float64 `json:"gearbox_efficiency,omitempty"`
}

// profileFromInput merges the overrides into the reference parameters and
// validates the result.
func profileFromInput(in *VehicleInput) (*vehicle.Profile, error) {
	p := vehicle.Reference().Params
	if in != nil {
		if in.Mass != 0 {
			p.Mass = in.Mass
		}
		if in.DragCoefficient != 0 {
			p.DragCoefficient = in.DragCoefficient
		}
		if in.FrontalArea != 0 {
			p.FrontalArea = in.FrontalArea
		}
		if in.RollingResistance != 0 {
			p.RollingResistance = in.RollingResistance
		}
		if in.RatedPower != 0 {
			p.RatedPower = in.RatedPower
		}
		if in.TopSpeed != 0 {
			p.TopSpeed = in.TopSpeed
		}
		if in.BatteryEfficiency != 0 {
			p.BatteryEfficiency = in.BatteryEfficiency
		}
		if in.ControllerEfficiency != 0 {
			p.ControllerEfficiency = in.ControllerEfficiency
		}
		if in.MotorEfficiency != 0 {
			p.MotorEfficiency = in.MotorEfficiency
		}
		if in.GearboxEfficiency != 0 {
			p.GearboxEfficiency = in.GearboxEfficiency
		}
	}
	return vehicle.NewProfile(p)
}

// PeakLinks holds map links for the route sections where each peak occurred.
type PeakLinks struct {
	TopSpeed        string `json:"top_speed"`
	PeakOutputPower string `json:"peak_output_power"`
	PeakRegenPower  string `json:"peak_regen_power"`
	SteepestIncline string `json:"steepest_incline"`
	SteepestDecline string `json:"steepest_decline"`
}

// TrackReport is a per-track summary plus map links to the peak sections.
type TrackReport struct {
	*track.Stats
	Links PeakLinks `json:"links"`
}

func reportFor(ts *track.Stats) TrackReport {
	return TrackReport{
		Stats: ts,
		Links: PeakLinks{
			TopSpeed:        geo.RouteURL(ts.TopSpeed.Start, ts.TopSpeed.End),
			PeakOutputPower: geo.RouteURL(ts.PeakOutputPower.Start, ts.PeakOutputPower.End),
			PeakRegenPower:  geo.RouteURL(ts.PeakRegenPower.Start, ts.PeakRegenPower.End),
			SteepestIncline: geo.RouteURL(ts.SteepestIncline.Start, ts.SteepestIncline.End),
			SteepestDecline: geo.RouteURL(ts.SteepestDecline.Start, ts.SteepestDecline.End),
		},
	}
}

// AnalyzeTrackInput defines the input parameters for analyzing a single track
type AnalyzeTrackInput struct {
	File    string        `json:"file"`
	Vehicle *VehicleInput `json:"vehicle,omitempty"`
}

// AnalyzeTrackOutput defines the output for single-track analysis
type AnalyzeTrackOutput struct {
	Track TrackReport `json:"track"`
}

// AnalyzeTrackTool returns a tool definition for analyzing a single GPX track
func AnalyzeTrackTool() mcp.Tool {
	return mcp.NewTool("analyze_track",
		mcp.WithDescription("Estimate the electric energy a vehicle needs to drive one recorded GPS track, with per-track peaks and map links"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Path to a GPX file holding a single track segment"),
		),
		mcp.WithObject("vehicle",
			mcp.Description("Optional vehicle parameter overrides; omitted fields use the reference vehicle"),
		),
	)
}

// HandleAnalyzeTrack implements single-track energy analysis
func HandleAnalyzeTrack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("analyze_track", func(ctx context.Context, input AnalyzeTrackInput, logger *slog.Logger) (interface{}, error) {
		if input.File == "" {
			return nil, core.NewError(core.ErrMalformedInput, "missing 'file'")
		}

		profile, err := profileFromInput(input.Vehicle)
		if err != nil {
			return nil, err
		}

		ts, err := analyzeFile(ctx, input.File, profile, logger)
		if err != nil {
			return nil, err
		}

		return AnalyzeTrackOutput{Track: reportFor(ts)}, nil
	})(ctx, req)
}

// analyzeFile returns the summary for one GPX file, consulting the stats
// cache first.
func analyzeFile(ctx context.Context, path string, profile *vehicle.Profile, logger *slog.Logger) (*track.Stats, error) {
	ctx, span := tracing.StartSpan(ctx, "tools.analyze_file")
	defer span.End()
	tracing.SetTrackName(span, path)

	key, cacheable := stats().key(path, profile)
	if cacheable {
		if ts, ok := stats().get(key); ok {
			logger.Debug("stats cache hit", "file", path)
			return ts, nil
		}
	}

	src, err := gpx.ParseFile(path)
	if err != nil {
		tracing.RecordSpanError(span, err)
		return nil, err
	}

	t, err := track.New(src.Name, src.Samples, profile)
	if err != nil {
		tracing.RecordSpanError(span, err)
		return nil, err
	}
	tracing.SetPointCount(span, len(t.Points))

	ts, err := t.Stats()
	if err != nil {
		tracing.RecordSpanError(span, err)
		return nil, err
	}

	if cacheable {
		stats().put(key, ts)
	}
	return ts, nil
}

// AnalyzeCommuteInput defines the input parameters for analyzing a commute
type AnalyzeCommuteInput struct {
	Files   []string      `json:"files"`
	Vehicle *VehicleInput `json:"vehicle,omitempty"`
}

// AnalyzeCommuteOutput defines the output for commute analysis
type AnalyzeCommuteOutput struct {
	Tracks   []TrackReport       `json:"tracks"`
	Commute  *track.CommuteStats `json:"commute"`
	Failures []string            `json:"failures,omitempty"`
}

// AnalyzeCommuteTool returns a tool definition for analyzing a commute
func AnalyzeCommuteTool() mcp.Tool {
	return mcp.NewTool("analyze_commute",
		mcp.WithDescription("Estimate the electric energy a vehicle needs for a set of recorded GPS tracks and aggregate them into commute totals"),
		mcp.WithArray("files",
			mcp.Required(),
			mcp.Description("Paths to the GPX files making up the commute, one track per file"),
		),
		mcp.WithObject("vehicle",
			mcp.Description("Optional vehicle parameter overrides; omitted fields use the reference vehicle"),
		),
	)
}

// HandleAnalyzeCommute implements commute energy analysis
func HandleAnalyzeCommute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("analyze_commute", func(ctx context.Context, input AnalyzeCommuteInput, logger *slog.Logger) (interface{}, error) {
		if len(input.Files) == 0 {
			return nil, core.NewError(core.ErrMalformedInput, "missing 'files'")
		}

		profile, err := profileFromInput(input.Vehicle)
		if err != nil {
			return nil, err
		}

		ctx, span := tracing.StartSpan(ctx, "tools.analyze_commute")
		defer span.End()
		tracing.SetTrackCount(span, len(input.Files))

		var out AnalyzeCommuteOutput
		perTrack := make([]*track.Stats, 0, len(input.Files))
		for _, path := range input.Files {
			ts, err := analyzeFile(ctx, path, profile, logger)
			if err != nil {
				// One bad file must not abort its siblings.
				logger.Warn("track failed", "file", path, "error", err)
				out.Failures = append(out.Failures, err.Error())
				continue
			}
			perTrack = append(perTrack, ts)
			out.Tracks = append(out.Tracks, reportFor(ts))
		}

		commute, err := track.AggregateStats(perTrack)
		if err != nil {
			tracing.RecordSpanError(span, err)
			return nil, err
		}
		out.Commute = commute

		return out, nil
	})(ctx, req)
}

// ReferenceVehicleOutput defines the output for the reference vehicle query
type ReferenceVehicleOutput struct {
	Description string         `json:"description"`
	Params      vehicle.Params `json:"params"`
	DragArea    float64        `json:"drag_area"`  // m²
	Weight      float64        `json:"weight"`     // N
	Efficiency  float64        `json:"efficiency"` // overall drivetrain fraction
}

// ReferenceVehicleTool returns a tool definition for querying the reference vehicle
func ReferenceVehicleTool() mcp.Tool {
	return mcp.NewTool("reference_vehicle",
		mcp.WithDescription("Return the built-in reference vehicle parameters used when no overrides are given"),
	)
}

// HandleReferenceVehicle implements the reference vehicle query
func HandleReferenceVehicle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("reference_vehicle", func(ctx context.Context, input struct{}, logger *slog.Logger) (interface{}, error) {
		p := vehicle.Reference()
		return ReferenceVehicleOutput{
			Description: "Smart Fortwo W450 with driver and battery pack",
			Params:      p.Params,
			DragArea:    p.DragArea,
			Weight:      p.Weight,
			Efficiency:  p.Efficiency,
		}, nil
	})(ctx, req)
}
