package main

import (
	"context"
	"fmt"
	"os"

	"gps-correlator/internal/engine"
	"gps-correlator/internal/record"
)

func loadRecords(path string) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return record.NewReader(f).ReadAll()
}

// replayRecords publishes a recorded run to sink with its original timing.
func replayRecords(ctx context.Context, recs []record.Record, sink engine.Sink, sampleRateHz, speed float64, loop bool, sleeper record.Sleeper) error {
	err := record.Play(recs, sampleRateHz, speed, loop, sleeper, func(r record.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return sink.Publish(r.Report())
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("replay: %w", err)
	}
	return nil
}
