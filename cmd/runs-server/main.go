// Command runs-server serves the run-record API, the saved run plots and
// the database debug routes.
//
//	runs-server [flags]
//	runs-server migrate <up|down|status|version N|force N|help>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/racingline/internal/api"
	"github.com/banshee-data/racingline/internal/config"
	"github.com/banshee-data/racingline/internal/db"
	"github.com/banshee-data/racingline/internal/pipeline"
	"github.com/banshee-data/racingline/internal/runplot"
	"github.com/banshee-data/racingline/internal/runstore"
	"github.com/banshee-data/racingline/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	listen      = flag.String("listen", ":8080", "Listen address")
	outputDir   = flag.String("output", "", "Output directory (overrides config)")
	dbPath      = flag.String("db", "", "Run record database (overrides config)")
	assetsHost  = flag.String("assets-host", "", "Host serving the echarts scripts (default CDN)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String("runs-server"))
		return
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

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath(), os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	database, err := db.Open(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	p := pipeline.New(cfg, nil, runstore.NewRecordStore(database.DB), nil)
	srv := api.NewServer(p.Records, p.Layout, p.References)
	srv.SetChartOptions(runplot.ChartOptions{AssetsHost: *assetsHost})

	mux := srv.ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		log.Fatalf("Failed to attach admin routes: %v", err)
	}
	runsRoot := filepath.Join(cfg.GetOutputDir(), runstore.RunsDir)
	mux.Handle("/runs/", http.StripPrefix("/runs/", http.FileServer(http.Dir(runsRoot))))

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("%s listening on %s", version.String("runs-server"), *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
}
