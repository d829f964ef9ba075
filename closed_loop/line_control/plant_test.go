package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorArrayModelRender(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	m := DefaultSensorArrayModel(cfg)

	f := m.Render(cfg.Positions[2])
	assert.Equal(t, 300.0, f[2])
	assert.Equal(t, 1600.0, f[7])
	assert.Less(t, f[1], f[0])
	assert.Equal(t, f[1], f[3], "symmetric profile around the line")

	pos, err := EstimatePosition(f[:], BrightLineOnDarkField, cfg)
	require.NoError(t, err)
	assert.InDelta(t, cfg.Positions[2], pos, 1e-9)
}

func TestLateralPlantStep(t *testing.T) {
	p := &LateralPlant{Position: 100, Gain: 10, Damping: 0}
	p.Step(-1, 0.1)
	assert.InDelta(t, -1.0, p.Velocity, 1e-12)
	assert.InDelta(t, 99.9, p.Position, 1e-12)

	p = &LateralPlant{Position: 0, Disturbance: 4}
	p.Step(0, 0.5)
	assert.InDelta(t, 2.0, p.Velocity, 1e-12)
	assert.InDelta(t, 1.0, p.Position, 1e-12)
}

func TestFirstOrderPlantApproachesInput(t *testing.T) {
	p := &FirstOrderPlant{Tau: 0.1}
	for i := 0; i < 1000; i++ {
		p.Step(5, 0.01)
	}
	assert.InDelta(t, 5.0, p.Value, 1e-6)
}
