// Command gpx2energy estimates the electric energy needed to drive recorded
// GPS tracks. By default it analyzes the GPX files given as arguments and
// prints per-track and commute summaries; with -serve it runs as an MCP
// server over stdio, optionally with an HTTP+SSE transport alongside.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evroute/gpx2energy/pkg/geo"
	"github.com/evroute/gpx2energy/pkg/gpx"
	"github.com/evroute/gpx2energy/pkg/monitoring"
	"github.com/evroute/gpx2energy/pkg/server"
	"github.com/evroute/gpx2energy/pkg/track"
	"github.com/evroute/gpx2energy/pkg/tracing"
	"github.com/evroute/gpx2energy/pkg/vehicle"
	ver "github.com/evroute/gpx2energy/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	serve           bool

	// HTTP transport flags
	enableHTTP  bool
	httpAddr    string
	httpBaseURL string

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string

	// Vehicle parameters, in the units a data sheet quotes them in.
	mass           float64
	cx             float64
	frontalArea    float64
	rrc            float64
	power          float64
	topSpeed       float64
	batteryEff     float64
	controllerEff  float64
	motorEff       float64
	gearboxEff     float64
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&serve, "serve", false, "Run as an MCP server on stdio instead of analyzing files")

	flag.BoolVar(&enableHTTP, "enable-http", false, "Enable HTTP+SSE transport (requires -serve)")
	flag.StringVar(&httpAddr, "http-addr", ":7080", "HTTP server address")
	flag.StringVar(&httpBaseURL, "http-base-url", "", "Base URL for HTTP transport (auto-detected if empty)")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", false, "Enable Prometheus metrics and health endpoints")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")

	ref := vehicle.Reference().Params
	flag.Float64Var(&mass, "mass", ref.Mass, "Vehicle mass including driver and batteries, in kg")
	flag.Float64Var(&cx, "cx", ref.DragCoefficient, "Aerodynamic drag coefficient")
	flag.Float64Var(&frontalArea, "area", ref.FrontalArea, "Frontal area, in m2")
	flag.Float64Var(&rrc, "rrc", ref.RollingResistance, "Rolling resistance coefficient")
	flag.Float64Var(&power, "power", ref.RatedPower/1000, "Rated power of the recording vehicle, in kW")
	flag.Float64Var(&topSpeed, "top-speed", ref.TopSpeed*3600/1000, "Top speed of the recording vehicle, in km/h")
	flag.Float64Var(&batteryEff, "battery-eff", ref.BatteryEfficiency*100, "Battery efficiency, in percent")
	flag.Float64Var(&controllerEff, "controller-eff", ref.ControllerEfficiency*100, "Controller efficiency, in percent")
	flag.Float64Var(&motorEff, "motor-eff", ref.MotorEfficiency*100, "Motor efficiency, in percent")
	flag.Float64Var(&gearboxEff, "gearbox-eff", ref.GearboxEfficiency*100, "Gearbox efficiency, in percent")
}

func main() {
	flag.Parse()

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if showVersionFlag {
		fmt.Printf("gpx2energy %s (commit %s, built %s)\n", ver.BuildVersion, ver.BuildCommit, ver.BuildDate)
		return
	}

	ctx := context.Background()
	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		// Continue without tracing
	} else {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()

		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	profile, err := buildProfile()
	if err != nil {
		logger.Error("invalid vehicle parameters", "error", err)
		os.Exit(2)
	}

	if serve {
		runServer(logger)
		return
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gpx2energy [flags] track.gpx [track.gpx ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := analyze(ctx, profile, files, logger); err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}
}

// buildProfile converts the flag units back to SI and validates them.
func buildProfile() (*vehicle.Profile, error) {
	return vehicle.NewProfile(vehicle.Params{
		Mass:                 mass,
		DragCoefficient:      cx,
		FrontalArea:          frontalArea,
		RollingResistance:    rrc,
		RatedPower:           power * 1000,
		TopSpeed:             topSpeed * 1000 / 3600,
		BatteryEfficiency:    batteryEff / 100,
		ControllerEfficiency: controllerEff / 100,
		MotorEfficiency:      motorEff / 100,
		GearboxEfficiency:    gearboxEff / 100,
	})
}

// analyze runs the commute analysis over the given GPX files and prints the
// per-track and commute summaries.
func analyze(ctx context.Context, profile *vehicle.Profile, files []string, logger *slog.Logger) error {
	sources := make([]track.Source, 0, len(files))
	for _, path := range files {
		src, err := gpx.ParseFile(path)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	commute, err := track.NewCommute(ctx, profile, sources)
	if err != nil {
		return err
	}
	for _, failure := range commute.Failures {
		logger.Warn("track skipped", "error", failure)
	}

	for _, t := range commute.Tracks {
		ts, err := t.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Track %s:\n", t.Name)
		printTrackStats(ts)
		fmt.Println()
	}

	if len(commute.Tracks) > 1 {
		cs, err := commute.Stats()
		if err != nil {
			return err
		}
		fmt.Println("Commute:")
		printCommuteStats(cs)
	}

	return nil
}

func printTrackStats(ts *track.Stats) {
	fmt.Printf("  distance:            %.2f km\n", ts.Distance)
	fmt.Printf("  duration:            %.2f min\n", ts.Duration)
	fmt.Printf("  average speed:       %.2f km/h\n", ts.AverageSpeed)
	fmt.Printf("  energy:              %.2f Wh\n", ts.Energy)
	fmt.Printf("  energy rate:         %.2f Wh/km\n", ts.EnergyRate)
	fmt.Printf("  average motor power: %.2f W\n", ts.AverageMotorPower)
	printPeak("top speed", ts.TopSpeed, "km/h")
	printPeak("peak output power", ts.PeakOutputPower, "W")
	printPeak("peak regen power", ts.PeakRegenPower, "W")
	printPeak("steepest incline", ts.SteepestIncline, "%")
	printPeak("steepest decline", ts.SteepestDecline, "%")
}

func printPeak(label string, p track.Peak, unit string) {
	fmt.Printf("  %-19s %.2f %s\n", label+":", p.Value, unit)
	fmt.Printf("      %s\n", geo.RouteURL(p.Start, p.End))
}

func printCommuteStats(cs *track.CommuteStats) {
	fmt.Printf("  distance:            %.2f km\n", cs.Distance)
	fmt.Printf("  duration:            %.2f min\n", cs.Duration)
	fmt.Printf("  average speed:       %.2f km/h\n", cs.AverageSpeed)
	fmt.Printf("  energy:              %.2f Wh\n", cs.Energy)
	fmt.Printf("  energy rate:         %.2f Wh/km\n", cs.EnergyRate)
	fmt.Printf("  average motor power: %.2f W\n", cs.AverageMotorPower)
	fmt.Printf("  top speed:           %.2f km/h\n", cs.TopSpeed)
	fmt.Printf("  peak output power:   %.2f W\n", cs.PeakOutputPower)
	fmt.Printf("  peak regen power:    %.2f W\n", cs.PeakRegenPower)
	fmt.Printf("  steepest incline:    %.2f %%\n", cs.SteepestIncline)
	fmt.Printf("  steepest decline:    %.2f %%\n", cs.SteepestDecline)
}

// runServer runs the MCP server until a shutdown signal arrives.
func runServer(logger *slog.Logger) {
	logger.Info("starting route energy MCP server",
		"version", ver.BuildVersion,
		"http_enabled", enableHTTP,
		"monitoring_enabled", enableMonitoring,
		"monitoring_addr", monitoringAddr)

	var healthChecker *monitoring.HealthChecker
	if enableMonitoring {
		healthChecker = monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
		defer healthChecker.Shutdown()
	}

	s, err := server.NewServer()
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if enableMonitoring {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		monitoringServer := &http.Server{
			Addr:              monitoringAddr,
			Handler:           mux,
			ReadHeaderTimeout: 30 * time.Second, // Slowloris protection
		}

		go func() {
			logger.Info("starting Prometheus metrics server", "addr", monitoringAddr)
			if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("monitoring server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := monitoringServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown monitoring server", "error", err)
			}
		}()
	}

	if enableHTTP {
		config := server.DefaultHTTPTransportConfig()
		config.Addr = httpAddr
		config.BaseURL = httpBaseURL

		httpTransport := server.NewHTTPTransport(s.GetMCPServer(), config, logger)
		if healthChecker != nil {
			httpTransport.SetHealthChecker(healthChecker)
		}

		go func() {
			logger.Info("starting HTTP transport", "addr", httpAddr)
			if err := httpTransport.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP transport error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := httpTransport.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown HTTP transport", "error", err)
			}
		}()
	}

	logger.Info("transport_enabled", "type", "stdio", "mode", "blocking")
	if err := s.RunWithContext(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
