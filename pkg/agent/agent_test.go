package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/configsvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		DataDir:      filepath.Join(dir, "state", "data"),
		SettingsPath: filepath.Join(dir, "settings.yml"),
		Address:      "127.0.0.1",
		Port:         1,
	}
}

func TestNewAgentWritesDefaultSettings(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewAgent(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.FileExists(t, cfg.SettingsPath)
	assert.DirExists(t, filepath.Join(cfg.DataDir, "db"))
	settings, err := configsvc.LoadSettings(cfg.SettingsPath)
	require.NoError(t, err)
	port, ok := settings.Int("psmoveservice", "server_port")
	assert.True(t, ok)
	assert.Equal(t, 9512, port)

	devices, err := a.Devices()
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := NewAgent(testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	reqCtx, reqCancel := context.WithTimeout(ctx, time.Second)
	defer reqCancel()
	reply, err := a.DebugRequest(reqCtx, "AA:BB", "psmove:hmd_pose 1 0 0 0 0 1 0 1.6 0 0 1 0")
	require.NoError(t, err)
	assert.Empty(t, reply)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
	}
}
