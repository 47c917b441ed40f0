package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/obstacles/internal/config"
	"github.com/banshee-data/obstacles/internal/lidar/l2frames"
	"github.com/banshee-data/obstacles/internal/lidar/monitor"
	"github.com/banshee-data/obstacles/internal/lidar/pipeline"
	"github.com/banshee-data/obstacles/internal/lidar/storage/sqlite"
	"github.com/banshee-data/obstacles/internal/version"
)

var (
	dataDir    = flag.String("data", "", "Directory of .pcd frames to process (required)")
	configFile = flag.String("config", "", "Path to a tuning JSON file (default: built-in defaults)")
	dbFile     = flag.String("db", "obstacles.db", "Path to the SQLite database file (empty disables persistence)")
	plotDir    = flag.String("plots", "", "Directory for per-frame PNG plots (empty disables plotting)")
	plotEvery  = flag.Int("plot-every", 1, "Plot every Nth frame")
	reportFile = flag.String("report", "", "Path of the HTML run report (empty disables the report)")
	loop       = flag.Bool("loop", false, "Restart from the first frame after the last (overrides loop_frames)")
	maxFrames  = flag.Int("max-frames", 0, "Stop after this many frames (0 = no limit)")
	sensorID   = flag.String("sensor", "lidar-0", "Sensor ID stamped on frames and clusters")
	realtime   = flag.Bool("realtime", false, "Pace processing to the frame budget")
	verbose    = flag.Bool("v", false, "Log a summary line per frame")
	trace      = flag.Bool("trace", false, "Log per-stage telemetry")
	showVer    = flag.Bool("version", false, "Print version information and exit")
)

// options is the parsed command line.
type options struct {
	DataDir    string
	ConfigFile string
	DBFile     string
	PlotDir    string
	PlotEvery  int
	ReportFile string
	Loop       bool
	MaxFrames  int
	SensorID   string
	Realtime   bool
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}
	log.Print(version.String())

	if *dataDir == "" {
		log.Fatal("-data is required")
	}

	var diagW, traceW io.Writer
	if *verbose || *trace {
		diagW = os.Stderr
	}
	if *trace {
		traceW = os.Stderr
	}
	pipeline.SetLogWriters(diagW, traceW)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, options{
		DataDir:    *dataDir,
		ConfigFile: *configFile,
		DBFile:     *dbFile,
		PlotDir:    *plotDir,
		PlotEvery:  *plotEvery,
		ReportFile: *reportFile,
		Loop:       *loop,
		MaxFrames:  *maxFrames,
		SensorID:   *sensorID,
		Realtime:   *realtime,
	})
	if err != nil {
		stop()
		log.Fatalf("Run failed: %v", err)
	}
}

// run processes the capture described by opts. Every resource it opens is
// released before it returns, including on error.
func run(ctx context.Context, opts options) error {
	cfg := config.EmptyTuningConfig()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(opts.ConfigFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log.Printf("Loaded tuning config from %s", opts.ConfigFile)
	}

	processor, err := pipeline.NewFrameProcessorFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid clustering configuration: %w", err)
	}

	source, err := l2frames.NewFrameSource(l2frames.FrameSourceConfig{
		Dir:      opts.DataDir,
		SensorID: opts.SensorID,
		Loop:     opts.Loop || cfg.GetLoopFrames(),
	})
	if err != nil {
		return fmt.Errorf("open frames: %w", err)
	}

	runner := &pipeline.Runner{
		Source:      source,
		Processor:   processor,
		FrameBudget: cfg.GetFrameBudget(),
		Pace:        opts.Realtime,
		MaxFrames:   opts.MaxFrames,
	}

	var store *sqlite.DetectionStore
	var dbRun *sqlite.Run
	if opts.DBFile != "" {
		store, err = sqlite.OpenDetectionStore(opts.DBFile)
		if err != nil {
			return fmt.Errorf("open detection database: %w", err)
		}
		defer store.Close()

		dbRun, err = store.StartRun(opts.SensorID, opts.DataDir, cfg)
		if err != nil {
			return fmt.Errorf("start run: %w", err)
		}
		log.Printf("Recording run %s to %s", dbRun.RunID, opts.DBFile)
		runner.Sinks = append(runner.Sinks, &pipeline.StoreSink{Store: store, RunID: dbRun.RunID})
	}

	if opts.PlotDir != "" {
		plotter, err := monitor.NewClusterPlotter(opts.PlotDir)
		if err != nil {
			return fmt.Errorf("create plotter: %w", err)
		}
		runner.Sinks = append(runner.Sinks, &pipeline.PlotSink{Plotter: plotter, Every: opts.PlotEvery})
	}

	var report *monitor.RunReport
	if opts.ReportFile != "" {
		report = monitor.NewRunReport("Obstacle detection - "+opts.DataDir, cfg.GetFrameBudget())
		runner.Sinks = append(runner.Sinks, &pipeline.ReportSink{Report: report})
	}

	stats, runErr := runner.Run(ctx)
	log.Printf("Processed %d frames (%d skipped, %d over budget): %d clusters, %d highlighted in %v",
		stats.Frames, stats.Skipped, stats.OverBudget, stats.Clusters, stats.Highlighted, stats.TotalElapsed)

	status := sqlite.RunStatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		status = sqlite.RunStatusCancelled
		runErr = nil
	case runErr != nil:
		status = sqlite.RunStatusFailed
	}

	if store != nil {
		if err := store.FinishRun(dbRun.RunID, status); err != nil {
			log.Printf("Failed to finish run: %v", err)
		} else if sum, err := store.RunSummary(dbRun.RunID); err == nil {
			log.Printf("Run %s %s: %.2f clusters/frame, %.1f ms mean, %.1f ms max",
				sum.RunID, sum.Status, sum.MeanClustersPerFrame, sum.MeanProcessingMs, sum.MaxProcessingMs)
		}
	}

	if report != nil {
		if err := report.WriteFile(opts.ReportFile); err != nil {
			log.Printf("Failed to write report: %v", err)
		} else {
			log.Printf("Wrote run report to %s", opts.ReportFile)
		}
	}

	return runErr
}
