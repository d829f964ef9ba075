package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	control "linetrack-core/closed_loop/line_control"
)

// Sensor sources a scenario can read frames from.
const (
	SourceSim    = "sim"
	SourceCAN    = "can"
	SourceSerial = "serial"
	SourceReplay = "replay"
)

// Command sinks a scenario can publish steering results to.
const (
	SinkLog = "log"
	SinkCAN = "can"
)

// Scenario defines a complete run: timing, follower tuning and I/O wiring
type Scenario struct {
	Meta       ScenarioMeta           `json:"meta" yaml:"meta"`
	Timing     ScenarioTiming         `json:"timing" yaml:"timing"`
	Follower   control.FollowerConfig `json:"follower" yaml:"follower"`
	Source     string                 `json:"source" yaml:"source"`
	Sink       string                 `json:"sink" yaml:"sink"`
	ReplayPath string                 `json:"replay_path,omitempty" yaml:"replay_path,omitempty"`
	Sim        SimConfig              `json:"sim" yaml:"sim"`
}

// ScenarioMeta contains scenario metadata
type ScenarioMeta struct {
	Name        string `json:"name" yaml:"name"`
	Version     int    `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
}

// ScenarioTiming defines timing parameters
type ScenarioTiming struct {
	DtS          float64 `json:"dt_s" yaml:"dt_s"`
	DurationS    float64 `json:"duration_s" yaml:"duration_s"`
	LogHz        float64 `json:"log_hz" yaml:"log_hz"`
	RealTimeMode bool    `json:"real_time_mode" yaml:"real_time_mode"`
	MeasuredDt   bool    `json:"measured_dt" yaml:"measured_dt"` // use wall-clock dt in real-time mode
}

// SimConfig parameterises the simulated track: the array model renders the
// line at the plant's lateral offset, which the turn command then drives.
type SimConfig struct {
	Sensor control.SensorArrayModel `json:"sensor" yaml:"sensor"`
	Plant  control.LateralPlant     `json:"plant" yaml:"plant"`
	Noise  float64                  `json:"noise" yaml:"noise"` // reading noise std dev, ADC counts
	Seed   int64                    `json:"seed" yaml:"seed"`
}

// DefaultScenario is the base every scenario file is decoded onto.
func DefaultScenario() Scenario {
	follower := control.DefaultFollowerConfig()
	return Scenario{
		Meta:     ScenarioMeta{Name: "unnamed", Version: 1},
		Timing:   ScenarioTiming{DtS: 0.01, DurationS: 10, LogHz: 1},
		Follower: follower,
		Source:   SourceSim,
		Sink:     SinkLog,
		Sim: SimConfig{
			Sensor: control.DefaultSensorArrayModel(follower.Estimator),
			Plant:  control.LateralPlant{Gain: 50, Damping: 5},
			Seed:   1,
		},
	}
}

// LoadScenario reads a scenario file. ".yaml" and ".yml" files are decoded
// as YAML, anything else as JSON.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return ParseScenario(data, format)
}

// ParseScenario decodes data onto DefaultScenario and validates the result.
func ParseScenario(data []byte, format string) (Scenario, error) {
	scen := DefaultScenario()

	switch format {
	case "json":
		if err := json.Unmarshal(data, &scen); err != nil {
			return Scenario{}, fmt.Errorf("unmarshal: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &scen); err != nil {
			return Scenario{}, fmt.Errorf("unmarshal: %w", err)
		}
	default:
		return Scenario{}, fmt.Errorf("unknown scenario format %q", format)
	}

	scen.applyDefaults()
	if err := scen.Validate(); err != nil {
		return Scenario{}, err
	}
	return scen, nil
}

// applyDefaults ties the simulated array to the estimator geometry.
func (s *Scenario) applyDefaults() {
	s.Sim.Sensor.Positions = s.Follower.Estimator.Positions
	s.Sim.Sensor.FullScale = s.Follower.Estimator.FullScale
	if s.Timing.LogHz <= 0 {
		s.Timing.LogHz = 1
	}
}

// Validate reports every problem in the scenario at once.
func (s Scenario) Validate() error {
	var err error
	if s.Timing.DurationS <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid duration_s: %g", s.Timing.DurationS))
	}
	if s.Timing.DtS <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid dt_s: %g", s.Timing.DtS))
	}
	if e := s.Follower.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("follower: %w", e))
	}

	switch s.Source {
	case SourceSim:
		if s.Sim.Sensor.LineWidth <= 0 {
			err = multierr.Append(err, fmt.Errorf("invalid sim.sensor.line_width: %g", s.Sim.Sensor.LineWidth))
		}
		if s.Sim.Noise < 0 {
			err = multierr.Append(err, fmt.Errorf("invalid sim.noise: %g", s.Sim.Noise))
		}
	case SourceReplay:
		if s.ReplayPath == "" {
			err = multierr.Append(err, fmt.Errorf("source %q requires replay_path", s.Source))
		}
	case SourceCAN, SourceSerial:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown source %q", s.Source))
	}

	switch s.Sink {
	case SinkLog, SinkCAN:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown sink %q", s.Sink))
	}
	return err
}

// Steps is the number of control ticks in the scenario.
func (s Scenario) Steps() int {
	n := int(s.Timing.DurationS/s.Timing.DtS + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}
