package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natprobe/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialTimeout)
	assert.Equal(t, 3000*time.Millisecond, cfg.TimeoutCeiling)
	assert.Equal(t, 2000*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 1024, cfg.ReceiveBufferSize)
}

func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, DefaultInitialTimeout, ConfigFromUnified(nil).InitialTimeout)

	u := config.NewConfig()
	u.Probe.InitialTimeout = config.Duration(time.Second)
	u.Probe.TimeoutCeiling = config.Duration(8 * time.Second)
	u.Probe.MaxWorkers = 3

	cfg := ConfigFromUnified(u)
	assert.Equal(t, time.Second, cfg.InitialTimeout)
	assert.Equal(t, 8*time.Second, cfg.TimeoutCeiling)
	assert.Equal(t, int64(3), cfg.MaxWorkers)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()

	assert.ErrorIs(t, cfg.Apply(WithInitialTimeout(0)), ErrInvalidConfig)
	assert.ErrorIs(t, cfg.Apply(WithMaxWorkers(0)), ErrInvalidConfig)
	assert.ErrorIs(t, cfg.Apply(WithClock(nil)), ErrInvalidConfig)

	require.NoError(t, cfg.Apply(WithTimeoutCeiling(100*time.Millisecond)))
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "timeout ceiling")
}

func TestParams(t *testing.T) {
	p := Params{Host: "::1", Port: 3478, Timeout: time.Second}
	assert.Equal(t, "[::1]:3478", p.Address())
	assert.NoError(t, p.Validate())

	q := p.WithTimeout(2 * time.Second)
	assert.Equal(t, 2*time.Second, q.Timeout)
	assert.Equal(t, time.Second, p.Timeout, "原值不变")

	assert.ErrorIs(t, p.WithTimeout(0).Validate(), ErrInvalidParams)
}
