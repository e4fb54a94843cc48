// Command evaluate-run scores an existing run directory against its map's
// reference line.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/banshee-data/racingline/internal/config"
	"github.com/banshee-data/racingline/internal/db"
	"github.com/banshee-data/racingline/internal/pipeline"
	"github.com/banshee-data/racingline/internal/runstore"
	"github.com/banshee-data/racingline/internal/security"
	"github.com/banshee-data/racingline/internal/session"
	"github.com/banshee-data/racingline/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	runDir      = flag.String("run", "", "Run directory containing run.csv")
	model       = flag.String("model", "", "Name of the model that drove")
	checkpoint  = flag.Int("checkpoint", 0, "Model checkpoint (epoch)")
	mapName     = flag.String("map", "Town01", "Map that was driven")
	weather     = flag.String("weather", "1", "Weather preset id or name")
	interactive = flag.Bool("interactive", false, "Run came from the manual driving client (shorter lap guard)")
	radius      = flag.Int("radius", -1, "DTW band radius; -1 for exact (default from config)")
	outputDir   = flag.String("output", "", "Output directory (overrides config)")
	dbPath      = flag.String("db", "", "Run record database (overrides config)")
	noRecord    = flag.Bool("no-record", false, "Do not write a run record")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("evaluate-run"))
		return
	}
	if *runDir == "" || *model == "" {
		log.Fatal("-run and -model are required")
	}
	w, err := session.ParseWeather(*weather)
	if err != nil {
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

	var records *runstore.RecordStore
	if !*noRecord {
		database, err := db.Open(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("Failed to open run database: %v", err)
		}
		defer database.Close()
		records = runstore.NewRecordStore(database.DB)
	}

	p := pipeline.New(cfg, nil, records, nil)
	if err := security.ValidatePathWithinDirectory(*runDir, p.Layout.RunsRoot()); err != nil {
		log.Fatalf("Run directory must live under %s: %v", p.Layout.RunsRoot(), err)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "radius" {
			p.Evaluator.Options = config.RadiusOptions(*radius)
		}
	})

	info := pipeline.RunInfo{Model: *model, Checkpoint: *checkpoint, Map: *mapName, Weather: w, Interactive: *interactive}
	rep, err := p.EvaluateDir(info, *runDir)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}
	fmt.Printf("%s: %s, score %.4f over %d cells (written to %s)\n", rep.Dir, rep.Status, rep.Score, rep.Cells, rep.ResultFile)
}
