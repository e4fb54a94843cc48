// Command compare-lines prints the DTW distance between two point files.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/racingline/internal/config"
	"github.com/banshee-data/racingline/internal/dtw"
	"github.com/banshee-data/racingline/internal/evaluate"
	"github.com/banshee-data/racingline/internal/trajectory"
	"github.com/banshee-data/racingline/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	refPath     = flag.String("reference", "", "Reference line CSV (x,y)")
	candPath    = flag.String("candidate", "", "Candidate line CSV (x,y)")
	radius      = flag.Int("radius", 10, "DTW band radius in points; -1 for exact (default from config)")
	withPath    = flag.Bool("path", false, "Include the alignment path in JSON output")
	jsonOut     = flag.Bool("json", false, "Print the full result as JSON")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("compare-lines"))
		return
	}
	if *refPath == "" || *candPath == "" {
		log.Fatal("both -reference and -candidate are required")
	}

	cfg, err := config.LoadOrEmpty(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	opts := cfg.CompareOptions()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "radius" {
			opts = config.RadiusOptions(*radius)
		}
	})
	opts.Path = *withPath

	ref, err := readLine(*refPath)
	if err != nil {
		log.Fatalf("Failed to read reference: %v", err)
	}
	cand, err := readLine(*candPath)
	if err != nil {
		log.Fatalf("Failed to read candidate: %v", err)
	}

	res, err := evaluate.Compare(ref, cand, opts)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}

	if !*jsonOut {
		fmt.Println(res.Distance)
		return
	}
	out := struct {
		Reference string `json:"reference"`
		Candidate string `json:"candidate"`
		Radius    *int   `json:"radius"`
		dtw.Result
	}{*refPath, *candPath, opts.Radius, res}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to write JSON: %v", err)
	}
}

func readLine(path string) (trajectory.Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return trajectory.ReadCSV(f)
}
