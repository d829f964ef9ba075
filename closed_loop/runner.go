package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/multierr"

	control "linetrack-core/closed_loop/line_control"
	"linetrack-core/utils"
)

// maxConsecutiveErrors aborts a run whose source or sink keeps failing.
const maxConsecutiveErrors = 50

type RunnerConfig struct {
	Interface    string
	MapPath      string
	ScenarioPath string
	SerialPort   string
	Baud         int
}

// RunStats summarises a finished or interrupted run.
type RunStats struct {
	Ticks        int
	LostTicks    int
	Errors       int
	LastPosition float64
	Truth        float64 // simulated line offset, sim source only
	MaxAbsTurn   int
}

type Runner struct {
	log      *utils.Logger
	scen     Scenario
	follower *control.Follower
	source   FrameSource
	sink     CommandSink
	stats    RunStats
}

// NewRunner loads the scenario and opens the source and sink it names.
func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	var cmap *utils.CANMap
	if scen.Source == SourceCAN || scen.Sink == SinkCAN {
		if cfg.MapPath != "" {
			cmap, err = utils.LoadCANMap(cfg.MapPath)
		} else {
			cmap, err = utils.DefaultCANMap()
		}
		if err != nil {
			return nil, fmt.Errorf("load can map: %w", err)
		}
	}

	src, err := openSource(ctx, scen, cfg, cmap)
	if err != nil {
		return nil, err
	}
	sink, err := openSink(ctx, scen, cfg, cmap, log)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	r, err := newRunner(scen, log, src, sink)
	if err != nil {
		_ = src.Close()
		_ = sink.Close()
		return nil, err
	}
	return r, nil
}

func newRunner(scen Scenario, log *utils.Logger, src FrameSource, sink CommandSink) (*Runner, error) {
	f, err := control.NewFollower(scen.Follower)
	if err != nil {
		return nil, err
	}
	return &Runner{
		log:      log.Named("runner"),
		scen:     scen,
		follower: f,
		source:   src,
		sink:     sink,
	}, nil
}

func openSource(ctx context.Context, scen Scenario, cfg RunnerConfig, cmap *utils.CANMap) (FrameSource, error) {
	switch scen.Source {
	case SourceSim:
		return newSimSource(scen.Sim), nil
	case SourceReplay:
		return openReplaySource(scen.ReplayPath)
	case SourceSerial:
		if cfg.SerialPort == "" {
			return nil, errors.New("serial source requires -serial")
		}
		return openSerialSource(cfg.SerialPort, cfg.Baud)
	case SourceCAN:
		reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
		if err != nil {
			return nil, err
		}
		src, err := newCANSource(reader, cmap)
		if err != nil {
			_ = reader.Close()
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unknown source %q", scen.Source)
}

func openSink(ctx context.Context, scen Scenario, cfg RunnerConfig, cmap *utils.CANMap, log *utils.Logger) (CommandSink, error) {
	switch scen.Sink {
	case SinkLog:
		return &logSink{log: log.Named("steer")}, nil
	case SinkCAN:
		writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
		if err != nil {
			return nil, err
		}
		return &canSink{cmap: cmap, writer: writer, log: log.Named("can")}, nil
	}
	return nil, fmt.Errorf("unknown sink %q", scen.Sink)
}

func (r *Runner) Close() error {
	return multierr.Combine(r.source.Close(), r.sink.Close())
}

// Stats returns the counters of the last run.
func (r *Runner) Stats() RunStats {
	return r.stats
}

// Run drives the follower for the scenario duration, or until the source
// reports io.EOF or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	timing := r.scen.Timing
	steps := r.scen.Steps()
	gains := r.scen.Follower.PID.Gains

	r.log.Info("Starting: scenario=%s source=%s sink=%s mode=%s dt=%.4fs duration=%.2fs real_time=%v kp=%.3f ki=%.3f kd=%.3f",
		r.scen.Meta.Name, r.scen.Source, r.scen.Sink, r.follower.Mode(), timing.DtS, timing.DurationS,
		timing.RealTimeMode, gains.Kp, gains.Ki, gains.Kd)

	var tick <-chan time.Time
	if timing.RealTimeMode {
		ticker := time.NewTicker(time.Duration(timing.DtS * float64(time.Second)))
		defer ticker.Stop()
		tick = ticker.C
	}

	logEvery := int(math.Max(1, math.Round(1/(timing.LogHz*timing.DtS))))
	fb, hasFeedback := r.source.(feedbackSource)

	r.stats = RunStats{}
	r.follower.Start()
	prevStatus := r.follower.Status()
	last := time.Now()
	consecutive := 0

	for i := 0; i < steps; i++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				r.log.Warn("Context canceled; stopping after %d ticks", r.stats.Ticks)
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		t := float64(i) * timing.DtS
		dt := timing.DtS
		if timing.RealTimeMode && timing.MeasuredDt {
			now := time.Now()
			if measured := now.Sub(last).Seconds(); measured > 0 {
				dt = measured
			}
			last = now
		}

		samples, err := r.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			r.log.Info("Source exhausted at t=%.3f", t)
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := r.recordError(&consecutive, "source", t, err); err != nil {
				return err
			}
			continue
		}

		res, err := r.follower.Tick(samples[:], dt)
		if err != nil {
			if err := r.recordError(&consecutive, "tick", t, err); err != nil {
				return err
			}
			continue
		}
		if hasFeedback {
			fb.Feedback(res, timing.DtS)
		}

		if err := r.sink.Publish(ctx, t, res, r.follower.PID().State()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := r.recordError(&consecutive, "sink", t, err); err != nil {
				return err
			}
			continue
		}
		consecutive = 0

		r.stats.Ticks++
		r.stats.LastPosition = res.Position
		if res.Status == control.LostLine {
			r.stats.LostTicks++
		}
		if a := abs(res.Turn); a > r.stats.MaxAbsTurn {
			r.stats.MaxAbsTurn = a
		}
		if hasFeedback {
			r.stats.Truth = fb.Truth()
		}

		if res.Status != prevStatus {
			switch res.Status {
			case control.LostLine:
				r.log.Warn("Line lost at t=%.3f; holding position %.1f", t, res.Position)
			case control.OnLine:
				r.log.Info("Line acquired at t=%.3f pos=%.1f", t, res.Position)
			}
			prevStatus = res.Status
		}

		if i%logEvery == 0 {
			diag := r.follower.PID().GetDiagnostics()
			r.log.Debug("t=%.2f status=%s pos=%.1f err=%.1f out=%.2f P=%.2f I=%.2f D=%.2f turn=%d",
				t, res.Status, res.Position, diag.Error, res.PID.Output, diag.Last.P, diag.Last.I, diag.Last.D, res.Turn)
		}
	}

	r.follower.Stop()
	if sk, ok := r.source.(interface{ Skipped() int }); ok {
		r.log.Debug("Source skipped %d non-frame lines", sk.Skipped())
	}
	r.log.Info("Completed: ticks=%d lost=%d errors=%d last_pos=%.1f max_turn=%d",
		r.stats.Ticks, r.stats.LostTicks, r.stats.Errors, r.stats.LastPosition, r.stats.MaxAbsTurn)
	return nil
}

func (r *Runner) recordError(consecutive *int, stage string, t float64, err error) error {
	r.stats.Errors++
	*consecutive++
	r.log.Error("%s failed at t=%.3f: %v", stage, t, err)
	if *consecutive >= maxConsecutiveErrors {
		return fmt.Errorf("%s: %d consecutive failures: %w", stage, *consecutive, err)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
