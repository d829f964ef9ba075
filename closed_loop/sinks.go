package main

import (
	"context"

	control "linetrack-core/closed_loop/line_control"
	"linetrack-core/utils"
)

// CommandSink receives the steering result of every tick.
type CommandSink interface {
	Publish(ctx context.Context, t float64, res control.TickResult, st control.PIDState) error
	Close() error
}

// logSink writes each tick to the trace log.
type logSink struct {
	log *utils.Logger
}

func (s *logSink) Publish(_ context.Context, t float64, res control.TickResult, st control.PIDState) error {
	s.log.Trace("t=%.3f status=%s pos=%.1f peak=%d off=%.3f out=%.2f P=%.2f I=%.2f D=%.2f scale=%.3f turn=%d integral=%.2f",
		t, res.Status, res.Position, res.Estimate.PeakIndex, res.Estimate.Offset,
		res.PID.Output, res.PID.P, res.PID.I, res.PID.D, res.Scale, res.Turn, st.Integral)
	return nil
}

func (s *logSink) Close() error { return nil }

// canSink transmits STEER_CMD frames.
type canSink struct {
	cmap   *utils.CANMap
	writer utils.CANWriter
	log    *utils.Logger
}

func (s *canSink) Publish(ctx context.Context, t float64, res control.TickResult, st control.PIDState) error {
	frame, err := s.cmap.EncodeSteerFrame(utils.SteerCommand{
		Output:   res.PID.Output,
		Position: res.Position,
		Integral: st.Integral,
		Turn:     res.Turn,
		Status:   int(res.Status),
	})
	if err != nil {
		return err
	}
	if err := s.writer.WriteFrame(ctx, frame); err != nil {
		return err
	}
	s.log.Trace("TX t=%.3f id=0x%X len=%d data=% X turn=%d",
		t, uint32(frame.ID), frame.Length, frame.Data[:frame.Length], res.Turn)
	return nil
}

func (s *canSink) Close() error {
	return s.writer.Close()
}
