package rendezvous

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-natprobe/config"
)

func TestModule_Lifecycle(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Rendezvous.ListenAddr = "127.0.0.1:0"
	cfg.Rendezvous.LegacyMappedAddress = true

	var srv *Server
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(func() prometheus.Registerer { return prometheus.NewRegistry() }),
		Module(),
		fx.Populate(&srv),
	)
	app.RequireStart()
	require.NotNil(t, srv.Addr())
	assert.True(t, srv.cfg.LegacyMappedAddress)
	app.RequireStop()

	t.Log("✅ 模块启动与停止")
}

func TestConfigFromUnified_Nil(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))
}
