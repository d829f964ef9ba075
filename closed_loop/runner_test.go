package main

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.einride.tech/can"

	control "linetrack-core/closed_loop/line_control"
	"linetrack-core/utils"
)

var referenceSamples = [utils.SensorChannels]float64{1469, 1064, 716, 332, 346, 604, 998, 1344}

type fakeCANReader struct {
	frames []can.Frame
	closed bool
}

func (f *fakeCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	if len(f.frames) == 0 {
		return can.Frame{}, io.EOF
	}
	fr := f.frames[0]
	f.frames = f.frames[1:]
	return fr, nil
}

func (f *fakeCANReader) Close() error {
	f.closed = true
	return nil
}

type fakeCANWriter struct {
	frames []can.Frame
	closed bool
}

func (f *fakeCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeCANWriter) Close() error {
	f.closed = true
	return nil
}

func newTestLogger() (*utils.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return utils.NewWriterLogger(&buf, utils.TRACE), &buf
}

func TestRunnerSimCentresLine(t *testing.T) {
	scen, err := LoadScenario("../scenarios/sim_centered.json")
	require.NoError(t, err)

	log, buf := newTestLogger()
	r, err := newRunner(scen, log, newSimSource(scen.Sim), &logSink{log: log})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Run(context.Background()))

	stats := r.Stats()
	assert.Equal(t, 1000, stats.Ticks)
	assert.Zero(t, stats.LostTicks)
	assert.Zero(t, stats.Errors)
	assert.Less(t, math.Abs(stats.Truth), 25.0)
	assert.Positive(t, stats.MaxAbsTurn)
	assert.Contains(t, buf.String(), "Completed: ticks=1000")
	assert.Equal(t, control.Stopped, r.follower.Status())
}

func TestRunnerReplay(t *testing.T) {
	capture := "# bench capture\n" +
		"boot ok\n" +
		"  RAW: 1469 1064 716 332 346 604 998 1344\n" +
		"RAW: 1 2 3\n" +
		"1469,1064,716,332,346,604,998,1344\n" +
		"RAW: 1600 1600 1600 1600 1600 1600 1600 1600\n"
	path := filepath.Join(t.TempDir(), "capture.txt")
	require.NoError(t, os.WriteFile(path, []byte(capture), 0o644))

	scen := DefaultScenario()
	scen.Source = SourceReplay
	scen.ReplayPath = path
	scen.Follower.PID.Gains = control.PIDGains{Kp: 1}
	require.NoError(t, scen.Validate())

	src, err := openReplaySource(path)
	require.NoError(t, err)

	log, buf := newTestLogger()
	r, err := newRunner(scen, log, src, &logSink{log: log})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Run(context.Background()))

	stats := r.Stats()
	assert.Equal(t, 3, stats.Ticks)
	assert.Equal(t, 1, stats.LostTicks)
	assert.Equal(t, 1, stats.Errors)
	assert.InDelta(t, -9.0603, stats.LastPosition, 1e-3)
	assert.Contains(t, buf.String(), "Source exhausted")
	assert.Contains(t, buf.String(), "Line lost")
	assert.Contains(t, buf.String(), "skipped 2 non-frame lines")
}

func TestRunnerCANSourceAndSink(t *testing.T) {
	cmap, err := utils.DefaultCANMap()
	require.NoError(t, err)

	reader := &fakeCANReader{}
	for seq := 0; seq < 2; seq++ {
		pair, err := cmap.EncodeSensorFrames(referenceSamples, seq)
		require.NoError(t, err)
		reader.frames = append(reader.frames, pair[0], pair[1])
	}
	src, err := newCANSource(reader, cmap)
	require.NoError(t, err)

	writer := &fakeCANWriter{}
	log, _ := newTestLogger()
	sink := &canSink{cmap: cmap, writer: writer, log: log}

	scen := DefaultScenario()
	scen.Source = SourceCAN
	scen.Sink = SinkCAN
	scen.Follower.PID.Gains = control.PIDGains{Kp: 1}

	r, err := newRunner(scen, log, src, sink)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, r.Stats().Ticks)

	require.Len(t, writer.frames, 2)
	for _, f := range writer.frames {
		cmd, err := cmap.DecodeSteerFrame(f)
		require.NoError(t, err)
		assert.Equal(t, 1, cmd.Turn)
		assert.Equal(t, int(control.OnLine), cmd.Status)
		assert.InDelta(t, 9.06, cmd.Output, 0.011)
		assert.InDelta(t, -9.06, cmd.Position, 0.1)
		assert.Zero(t, cmd.Integral)
	}

	require.NoError(t, r.Close())
	assert.True(t, reader.closed)
	assert.True(t, writer.closed)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	scen := DefaultScenario()
	scen.Follower.PID.Gains = control.PIDGains{Kp: 0.5}
	log, _ := newTestLogger()
	r, err := newRunner(scen, log, newSimSource(scen.Sim), &logSink{log: log})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Zero(t, r.Stats().Ticks)
}

func TestRunnerRejectsInvalidFollower(t *testing.T) {
	scen := DefaultScenario()
	scen.Follower.Mode = 0
	log, _ := newTestLogger()
	_, err := newRunner(scen, log, newSimSource(scen.Sim), &logSink{log: log})
	assert.Error(t, err)
}
