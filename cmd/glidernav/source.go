package main

import (
	"context"
	"fmt"
	"time"

	"glidernav/internal/config"
	"glidernav/internal/replay"
	"glidernav/internal/sensors"
	"glidernav/internal/sim"
)

// source feeds ticks to handle until it runs out, handle fails or ctx is
// done.
type source func(ctx context.Context, handle func(sensors.Tick) error) error

func newSource(cfg config.Config) (source, string, error) {
	switch cfg.Source.Kind {
	case config.SourceReplay:
		l, err := replay.Load(cfg.Source.Replay.Path)
		if err != nil {
			return nil, "", fmt.Errorf("replay load: %w", err)
		}
		desc := fmt.Sprintf("replay path=%s ticks=%d speed=%v loop=%v", cfg.Source.Replay.Path, l.Ticks(), cfg.Source.Replay.Speed, cfg.Source.Replay.Loop)
		return replaySource(l.Records, cfg.Source.Replay.Speed, cfg.Source.Replay.Loop, nil), desc, nil
	default:
		script, err := sim.LoadScenarioScript(cfg.Source.Scenario)
		if err != nil {
			return nil, "", fmt.Errorf("scenario load: %w", err)
		}
		scn, err := sim.NewScenario(script)
		if err != nil {
			return nil, "", fmt.Errorf("scenario: %w", err)
		}
		f, err := sim.NewFlight(scn, cfg.SamplePeriod)
		if err != nil {
			return nil, "", err
		}
		desc := fmt.Sprintf("sim scenario=%s duration=%s realtime=%v", cfg.Source.Scenario, scn.Duration(), cfg.Source.Realtime)
		return simSource(f, cfg.SamplePeriod, cfg.Source.Realtime), desc, nil
	}
}

func simSource(f *sim.Flight, period time.Duration, realtime bool) source {
	return func(ctx context.Context, handle func(sensors.Tick) error) error {
		var tick <-chan time.Time
		if realtime {
			t := time.NewTicker(period)
			defer t.Stop()
			tick = t.C
		}
		for {
			if tick != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-tick:
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}
			tk, ok := f.Next()
			if !ok {
				return nil
			}
			if err := handle(tk); err != nil {
				return err
			}
		}
	}
}

func replaySource(records []replay.Record, speed float64, loop bool, sleeper replay.Sleeper) source {
	return func(ctx context.Context, handle func(sensors.Tick) error) error {
		return replay.Play(ctx, records, speed, loop, sleeper, handle)
	}
}
