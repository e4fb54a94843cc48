// Command data-summary reports the steering balance of gathered data.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/racingline/internal/datasummary"
	"github.com/banshee-data/racingline/internal/fsutil"
	"github.com/banshee-data/racingline/internal/version"
)

var (
	dataDir     = flag.String("data", "out", "Directory holding one sub-directory per gathering session")
	jsonOut     = flag.Bool("json", false, "Print the report as JSON")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("data-summary"))
		return
	}

	rep, err := datasummary.Summarize(fsutil.OSFileSystem{}, *dataDir)
	if err != nil {
		log.Fatalf("Failed to summarise %s: %v", *dataDir, err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("Failed to write JSON: %v", err)
		}
		return
	}
	if err := rep.WriteText(os.Stdout); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}
