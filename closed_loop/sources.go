package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	control "linetrack-core/closed_loop/line_control"
	"linetrack-core/utils"
)

// FrameSource yields one 8-channel sensor frame per control tick. io.EOF ends
// the run cleanly.
type FrameSource interface {
	Next(ctx context.Context) ([utils.SensorChannels]float64, error)
	Close() error
}

// feedbackSource is implemented by sources that model the vehicle and need
// the steering result of each tick.
type feedbackSource interface {
	Feedback(res control.TickResult, dt float64)
	Truth() float64
}

// simSource renders the line at the lateral plant's offset.
type simSource struct {
	model control.SensorArrayModel
	plant control.LateralPlant
	noise float64
	rng   *rand.Rand
}

func newSimSource(cfg SimConfig) *simSource {
	return &simSource{
		model: cfg.Sensor,
		plant: cfg.Plant,
		noise: cfg.Noise,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (s *simSource) Next(ctx context.Context) ([utils.SensorChannels]float64, error) {
	if err := ctx.Err(); err != nil {
		return [utils.SensorChannels]float64{}, err
	}
	frame := s.model.Render(s.plant.Position)
	if s.noise > 0 {
		for i := range frame {
			v := frame[i] + s.rng.NormFloat64()*s.noise
			if s.model.FullScale > 0 {
				v = control.Clamp(v, 0, s.model.FullScale)
			}
			frame[i] = v
		}
	}
	return frame, nil
}

func (s *simSource) Feedback(res control.TickResult, dt float64) {
	s.plant.Step(float64(res.Turn), dt)
}

// Truth returns the simulated line offset.
func (s *simSource) Truth() float64 {
	return s.plant.Position
}

func (s *simSource) Close() error { return nil }

// canSource assembles LINE_SENSOR_A/B pairs received on the bus.
type canSource struct {
	reader utils.CANReader
	asm    *utils.SensorFrameAssembler
}

func newCANSource(reader utils.CANReader, cmap *utils.CANMap) (*canSource, error) {
	asm, err := utils.NewSensorFrameAssembler(cmap)
	if err != nil {
		return nil, fmt.Errorf("sensor frames: %w", err)
	}
	return &canSource{reader: reader, asm: asm}, nil
}

func (s *canSource) Next(ctx context.Context) ([utils.SensorChannels]float64, error) {
	for {
		frame, err := s.reader.ReadFrame(ctx)
		if err != nil {
			return [utils.SensorChannels]float64{}, err
		}
		samples, complete, err := s.asm.Add(frame)
		if err != nil {
			return samples, fmt.Errorf("decode 0x%X: %w", uint32(frame.ID), err)
		}
		if complete {
			return samples, nil
		}
	}
}

func (s *canSource) Close() error {
	return s.reader.Close()
}

type frameReader interface {
	ReadFrame(ctx context.Context) ([utils.SensorChannels]float64, error)
}

// textSource serves frames parsed from the serial debug stream or a replay file.
type textSource struct {
	reader frameReader
	closer io.Closer
}

func (s *textSource) Next(ctx context.Context) ([utils.SensorChannels]float64, error) {
	return s.reader.ReadFrame(ctx)
}

// Skipped returns the number of lines that carried no frame.
func (s *textSource) Skipped() int {
	if sk, ok := s.reader.(interface{ Skipped() int }); ok {
		return sk.Skipped()
	}
	return 0
}

func (s *textSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func openReplaySource(path string) (*textSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return &textSource{reader: utils.NewTextFrameReader(f), closer: f}, nil
}

func openSerialSource(port string, baud int) (*textSource, error) {
	r, err := utils.OpenSerialFrameReader(port, baud)
	if err != nil {
		return nil, err
	}
	return &textSource{reader: r, closer: r}, nil
}
