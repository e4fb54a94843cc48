// Command capture-reference drives a recorded autopilot lap through the
// reference regime and stores it as the map's reference line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/racingline/internal/config"
	"github.com/banshee-data/racingline/internal/pipeline"
	"github.com/banshee-data/racingline/internal/session"
	"github.com/banshee-data/racingline/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	mapName     = flag.String("map", "Town01", "Map the reference line is captured for")
	telemetry   = flag.String("telemetry", "", "Recorded drive CSV (x,y,speed[,steer,throttle,brake,manual])")
	period      = flag.Duration("period", 0, "Replay frame period, e.g. 100ms (0 replays as fast as possible)")
	outputDir   = flag.String("output", "", "Output directory (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("capture-reference"))
		return
	}
	if *telemetry == "" {
		log.Fatal("-telemetry is required")
	}

	cfg, err := config.LoadOrEmpty(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputDir != "" {
		cfg.OutputDir = outputDir
	}

	frames, err := readTelemetry(*telemetry)
	if err != nil {
		log.Fatalf("Failed to read telemetry: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, nil, nil, nil)
	sim := session.NewReplaySimulator(frames, *period, nil)
	start := time.Now()
	out, err := p.CaptureReference(ctx, *mapName, sim, session.AutopilotDriver{})
	if err != nil {
		log.Fatalf("Reference capture failed: %v", err)
	}
	log.Printf("Captured %d points for %s in %v, saved to %s",
		len(out.Trajectory), *mapName, time.Since(start).Round(time.Millisecond), p.References.Path(*mapName))
}

func readTelemetry(path string) ([]session.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return session.ReadTelemetry(f)
}
