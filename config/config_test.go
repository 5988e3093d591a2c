package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	// set up some defaults
	cfg := DefaultConfig()
	assert.NotNil(cfg.RPC)
	assert.NotNil(cfg.Index)
	assert.NotNil(cfg.Engine)
	assert.NotNil(cfg.Instrumentation)

	// check the root dir stuff...
	cfg.SetRoot("/foo")
	cfg.DBPath = "/opt/data"

	assert.Equal("/opt/data", cfg.DBDir())

	cfg.DBPath = "data"
	assert.Equal("/foo/data", cfg.DBDir())
	assert.Equal("/foo/config/config.toml", cfg.ConfigFile())
}

func TestConfigValidateBasic(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ValidateBasic())

	// tamper with the db backend
	cfg.DBBackend = "cleveldb"
	assert.Error(t, cfg.ValidateBasic())

	cfg = DefaultConfig()
	cfg.LogFormat = "xml"
	assert.Error(t, cfg.ValidateBasic())

	cfg = DefaultConfig()
	cfg.Index.QueueSize = 0
	assert.Error(t, cfg.ValidateBasic())
}

func TestRPCConfigValidateBasic(t *testing.T) {
	cfg := TestRPCConfig()
	assert.NoError(t, cfg.ValidateBasic())
	assert.False(t, cfg.IsCorsEnabled())

	cfg.CORSAllowedOrigins = []string{"*"}
	assert.True(t, cfg.IsCorsEnabled())

	cfg.ReadTimeout = -time.Second
	assert.Error(t, cfg.ValidateBasic())
}

func TestEngineConfigValidateBasic(t *testing.T) {
	testCases := map[string]struct {
		mutate    func(*EngineConfig)
		expectErr bool
	}{
		"default":               {func(*EngineConfig) {}, false},
		"http address":          {func(c *EngineConfig) { c.RPCAddress = "http://127.0.0.1:10332" }, false},
		"tcp address":           {func(c *EngineConfig) { c.RPCAddress = "tcp://127.0.0.1:10332" }, true},
		"zero poll interval":    {func(c *EngineConfig) { c.PollInterval = 0 }, true},
		"negative request time": {func(c *EngineConfig) { c.RequestTimeout = -1 }, true},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			cfg := TestEngineConfig()
			tc.mutate(cfg)
			if tc.expectErr {
				require.Error(t, cfg.ValidateBasic())
			} else {
				require.NoError(t, cfg.ValidateBasic())
			}
		})
	}
}

func TestInstrumentationConfigValidateBasic(t *testing.T) {
	cfg := TestInstrumentationConfig()
	assert.NoError(t, cfg.ValidateBasic())

	cfg.Prometheus = true
	cfg.PrometheusListenAddr = ""
	assert.Error(t, cfg.ValidateBasic())
}
