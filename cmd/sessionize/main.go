package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgar-sessions/sessionize/internal/config"
	"github.com/edgar-sessions/sessionize/internal/logfile"
	"github.com/edgar-sessions/sessionize/internal/mock"
	"github.com/edgar-sessions/sessionize/internal/output"
	"github.com/edgar-sessions/sessionize/internal/report"
	"github.com/edgar-sessions/sessionize/internal/sessionize"
	"github.com/edgar-sessions/sessionize/internal/stats"
	"github.com/edgar-sessions/sessionize/internal/ws"
)

const usage = `usage: sessionize [flags] [<log.csv> <inactivity_period.txt> <sessionization.txt>]

Reads an EDGAR access log, groups requests into per-client sessions and
writes one line per closed session. Paths default to the config file values.

flags:
`

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	serve := flag.Bool("serve", false, "Publish closed sessions over WebSocket while processing")
	port := flag.Int("port", 0, "Override server port")
	token := flag.String("token", "", "Auth token required by the server")
	showReport := flag.Bool("report", false, "Print a run report when done")
	mockRows := flag.Int("mock", 0, "Generate a synthetic log with this many rows before processing")
	seed := flag.Int64("seed", 1, "Seed for -mock")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch flag.NArg() {
	case 0:
	case 3:
		cfg.Input.Log = flag.Arg(0)
		cfg.Input.InactivityPeriod = flag.Arg(1)
		cfg.Output.Path = flag.Arg(2)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if *serve {
		cfg.Server.Enabled = true
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *token != "" {
		cfg.Server.AuthToken = *token
	}
	if *showReport {
		cfg.Report.Markdown = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mockRows, *seed); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Fatalf("Interrupted, output is incomplete")
		}
		log.Fatalf("%v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(ctx context.Context, cfg *config.Config, mockRows int, seed int64) error {
	// The threshold is validated before any output file exists.
	threshold, err := config.LoadThreshold(cfg.Input.InactivityPeriod)
	if err != nil {
		return err
	}

	if mockRows > 0 {
		if err := writeMockLog(cfg.Input.Log, mockRows, seed); err != nil {
			return err
		}
	}

	reader, err := logfile.Open(cfg.Input.Log)
	if err != nil {
		return err
	}
	defer reader.Close()

	out, err := output.Create(cfg.Output.Path)
	if err != nil {
		return err
	}
	defer out.Close()

	tracker := stats.NewTracker(threshold)
	sinks := []sessionize.Sink{out, tracker}

	var broadcaster *ws.Broadcaster
	serverErr := make(chan error, 1)
	serveCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	if cfg.Server.Enabled {
		bc := cfg.Broadcast
		broadcaster = ws.NewBroadcaster(bc.Throttle, bc.SnapshotInterval, bc.MaxConnections, bc.HistoryLimit)
		defer broadcaster.Stop()
		broadcaster.SetPrivacyFilter(cfg.Privacy.NewPrivacyFilter())
		sinks = append(sinks, broadcaster)

		server := ws.NewServer(cfg, threshold, broadcaster, tracker)
		go func() {
			serverErr <- ws.ListenAndServe(serveCtx, cfg.Server.Host, cfg.Server.Port, server.Handler())
		}()
	}

	sz := sessionize.New(threshold, sessionize.MultiSink(sinks...))
	sz.ProgressEvery = cfg.Broadcast.ProgressEvery
	sz.Progress = func(res sessionize.Result) {
		tracker.Observe(res)
		if broadcaster != nil {
			broadcaster.Progress(ws.ProgressPayload{
				Rows:       res.Rows,
				Skipped:    res.Skipped,
				Sessions:   res.Sessions,
				Open:       res.Open,
				BytesRead:  reader.BytesRead(),
				TotalBytes: reader.Size(),
			})
		}
	}

	log.Printf("Sessionizing %s (inactivity period %ds) into %s", cfg.Input.Log, threshold, cfg.Output.Path)
	res, err := sz.Run(ctx, reader)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", cfg.Output.Path, err)
	}

	tracker.Finish(res)
	summary := tracker.Summary()
	log.Printf("Wrote %d sessions from %d rows (%d skipped) in %.2fs",
		res.Sessions, res.Rows, res.Skipped, summary.Elapsed)

	if cfg.Report.Markdown {
		rendered, err := report.Render(summary, cfg.Report.Style, 80)
		if err != nil {
			log.Printf("report: %v", err)
		} else {
			fmt.Print(rendered)
		}
	}

	if broadcaster == nil {
		return nil
	}

	broadcaster.Complete(summary)
	log.Printf("Run complete, still serving on %s:%d (Ctrl+C to stop)", cfg.Server.Host, cfg.Server.Port)
	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
		stopServer()
		return <-serverErr
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	}
}

func writeMockLog(path string, rows int, seed int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating mock log: %w", err)
	}

	gen := mock.NewGenerator(seed)
	gen.BadRowEvery = 500
	if err := gen.WriteLog(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("writing mock log: %w", err)
	}
	log.Printf("Generated %d mock rows in %s", rows, path)
	return f.Close()
}
