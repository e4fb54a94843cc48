// Command replay-drive runs a driving session over a recorded telemetry
// log, then saves, scores and records the run.
//
// The recorded controls stand in for the model under test: frames flagged
// manual are treated as human interventions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/racingline/internal/config"
	"github.com/banshee-data/racingline/internal/db"
	"github.com/banshee-data/racingline/internal/pipeline"
	"github.com/banshee-data/racingline/internal/runstore"
	"github.com/banshee-data/racingline/internal/session"
	"github.com/banshee-data/racingline/internal/units"
	"github.com/banshee-data/racingline/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	model       = flag.String("model", "", "Name of the model that drove")
	checkpoint  = flag.Int("checkpoint", 0, "Model checkpoint (epoch)")
	mapName     = flag.String("map", "Town01", "Map that was driven")
	weather     = flag.String("weather", "1", "Weather preset id or name")
	interactive = flag.Bool("interactive", false, "Run came from the manual driving client (shorter lap guard)")
	telemetry   = flag.String("telemetry", "", "Recorded drive CSV (x,y,speed[,steer,throttle,brake,manual])")
	period      = flag.Duration("period", 0, "Replay frame period, e.g. 100ms (0 replays as fast as possible)")
	outputDir   = flag.String("output", "", "Output directory (overrides config)")
	dbPath      = flag.String("db", "", "Run record database (overrides config)")
	noRecord    = flag.Bool("no-record", false, "Do not write a run record")
	speedUnits  = flag.String("units", units.KMPH, "Units for reported speeds: "+units.GetValidUnitsString())
	listWeather = flag.Bool("list-weather", false, "Print the weather presets and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("replay-drive"))
		return
	}
	if *listWeather {
		for _, w := range session.Weathers() {
			fmt.Printf("%2d  %s\n", int(w), w)
		}
		return
	}
	if *telemetry == "" || *model == "" {
		log.Fatal("-telemetry and -model are required")
	}
	w, err := session.ParseWeather(*weather)
	if err != nil {
		log.Fatal(err)
	}
	if err := units.Validate(*speedUnits); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.LoadOrEmpty(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	f, err := os.Open(*telemetry)
	if err != nil {
		log.Fatalf("Failed to open telemetry: %v", err)
	}
	frames, err := session.ReadTelemetry(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to read telemetry: %v", err)
	}

	var records *runstore.RecordStore
	if !*noRecord {
		database, err := db.Open(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("Failed to open run database: %v", err)
		}
		defer database.Close()
		records = runstore.NewRecordStore(database.DB)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(cfg, nil, records, nil)
	info := pipeline.RunInfo{Model: *model, Checkpoint: *checkpoint, Map: *mapName, Weather: w, Interactive: *interactive}
	sim := session.NewReplaySimulator(frames, *period, nil)

	rep, err := p.Drive(ctx, info, sim, session.AutopilotDriver{})
	if rep == nil {
		log.Fatalf("Drive failed: %v", err)
	}
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	o := rep.Outcome
	fmt.Printf("run:               %s\n", rep.Dir)
	fmt.Printf("status:            %s\n", rep.Status)
	fmt.Printf("score:             %.4f\n", rep.Score)
	fmt.Printf("points:            %d\n", len(o.Trajectory))
	fmt.Printf("frames:            %d\n", o.Frames)
	fmt.Printf("avg speed:         %.2f %s\n", units.ConvertSpeed(units.FromKmh(o.AvgSpeedKmh), *speedUnits), *speedUnits)
	fmt.Printf("max speed:         %.2f %s\n", units.ConvertSpeed(units.FromKmh(o.MaxSpeedKmh), *speedUnits), *speedUnits)
	fmt.Printf("intervention rate: %.3f\n", o.InterventionRate)
	if rep.Record != nil {
		fmt.Printf("record:            %s\n", rep.Record.RunID)
	}
}
