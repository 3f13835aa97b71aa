package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoad_Defaults(t *testing.T) {
	cfg := MustLoad()
	require.NotNil(t, cfg)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, defaultListenAddress, cfg.ListenAddress)
	assert.Equal(t, defaultRemoteAddress, cfg.RemoteAddress)
	assert.NotEmpty(t, cfg.DataPath)

	assert.Equal(t, time.Duration(0), cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 10*time.Second, cfg.BreakerInterval)
	assert.Equal(t, 60*time.Second, cfg.BreakerCooldown)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)

	assert.True(t, cfg.IsLocal())
	assert.False(t, cfg.IsProd())
}

func TestMustLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", EnvProd)
	t.Setenv("LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("SYNC_INTERVAL_SECONDS", "120")
	t.Setenv("DATA_PATH", "/tmp/orderkeeper-test.db")

	cfg := MustLoad()

	assert.Equal(t, EnvProd, cfg.Env)
	assert.Equal(t, "0.0.0.0:9999", cfg.ListenAddress)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.Equal(t, "/tmp/orderkeeper-test.db", cfg.DataPath)
	assert.True(t, cfg.IsProd())
}

func TestConfig_Validate(t *testing.T) {
	c := &Config{ListenAddress: "", RemoteAddress: "http://x"}
	assert.Error(t, c.validate())

	c = &Config{ListenAddress: "127.0.0.1:1", RemoteAddress: ""}
	assert.Error(t, c.validate())

	c = &Config{ListenAddress: "127.0.0.1:1", RemoteAddress: "http://x"}
	assert.NoError(t, c.validate())
}
