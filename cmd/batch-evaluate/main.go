// Command batch-evaluate rescores every run of a model on a map in
// parallel and prints a ranking.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/banshee-data/racingline/internal/config"
	"github.com/banshee-data/racingline/internal/db"
	"github.com/banshee-data/racingline/internal/pipeline"
	"github.com/banshee-data/racingline/internal/runstore"
	"github.com/banshee-data/racingline/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	model       = flag.String("model", "", "Model whose runs are evaluated")
	mapName     = flag.String("map", "Town01", "Map the runs were driven on")
	workers     = flag.Int("workers", 0, "Concurrent evaluations (0 uses GOMAXPROCS)")
	outputDir   = flag.String("output", "", "Output directory (overrides config)")
	dbPath      = flag.String("db", "", "Run record database (overrides config)")
	interactive = flag.Bool("interactive", false, "Runs came from the manual driving client (shorter lap guard)")
	record      = flag.Bool("record", false, "Write a new run record for every scored run")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("batch-evaluate"))
		return
	}
	if *model == "" {
		log.Fatal("-model is required")
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
	if *record {
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
	base := pipeline.RunInfo{Model: *model, Map: *mapName, Interactive: *interactive}
	results, err := p.EvaluateAll(ctx, base, *workers)
	if err != nil {
		log.Fatalf("Batch evaluation failed: %v", err)
	}
	if len(results) == 0 {
		log.Printf("No runs of %s on %s under %s", *model, *mapName, p.Layout.MapDir(*model, *mapName))
		return
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if (a.Err == nil) != (b.Err == nil) {
			return a.Err == nil
		}
		return a.Err == nil && a.Report.Score < b.Report.Score
	})

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tRUN\tSTATUS\tSCORE")
	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(tw, "-\t%s\terror\t%v\n", r.Dir, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\n", i+1, r.Dir, r.Report.Status, r.Report.Score)
	}
	tw.Flush()
	if failed > 0 {
		log.Printf("%d of %d runs could not be evaluated", failed, len(results))
	}
}
