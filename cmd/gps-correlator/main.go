package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"gps-correlator/internal/config"
	"gps-correlator/internal/logging"
	"gps-correlator/internal/udp"
	"gps-correlator/internal/web"
)

func main() {
	fs := pflag.NewFlagSet("gps-correlator", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "./configs/dev.yaml", "Path to YAML config")
	summaryPath := fs.String("summary", "", "Print a summary of a record log and exit")
	logLevel := fs.String("log-level", "", "Override log.level from the config")
	replayPath := fs.String("replay", "", "Send a record log to udp.dest instead of correlating")
	speed := fs.Float64("speed", 1, "Replay speed multiplier")
	loop := fs.Bool("loop", false, "Loop the replay")
	_ = fs.Parse(os.Args[1:])

	if *summaryPath != "" {
		if err := printRecordSummary(os.Stdout, *summaryPath); err != nil {
			fmt.Fprintf(os.Stderr, "summary failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *replayPath != "" {
		if err := replay(*configPath, *replayPath, *speed, *loop); err != nil {
			fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *logLevel, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "gps-correlator: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, levelOverride string, stderr io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if levelOverride != "" {
		cfg.Log.Level = levelOverride
	}

	logs := web.NewLogBuffer(2000)
	logger, err := logging.New(cfg.Log.Level, stderr, logs)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg, logger, logs)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("gps-correlator starting", "config", configPath, "run_id", rt.runID)
	return rt.Run(ctx)
}

func replay(configPath, path string, speed float64, loop bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if !cfg.UDP.Enable {
		return fmt.Errorf("replay requires udp.enable")
	}
	logger, err := logging.New(cfg.Log.Level, os.Stderr)
	if err != nil {
		return err
	}
	recs, err := loadRecords(path)
	if err != nil {
		return err
	}
	b, err := udp.NewBroadcaster(cfg.UDP.Dest)
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("replaying records", "path", path, "records", len(recs), "dest", cfg.UDP.Dest, "speed", speed, "loop", loop)
	return replayRecords(ctx, recs, b, cfg.Channel.SampleRateHz, speed, loop, nil)
}
