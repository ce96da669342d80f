package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 40, cfg.Memory.MaxTurns)
	assert.Equal(t, 5, cfg.Memory.CountThreshold)
	assert.Equal(t, 24, cfg.Memory.TimeThresholdHours)
	assert.Equal(t, 20, cfg.Tarot.MaxReadings)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Memory.MaxTurns)
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"memory": {"max_turns": 10, "count_threshold": 3, "time_threshold_hours": 24, "sweep_schedule": "* * * * *"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	t.Setenv("WANQING_MEMORY_COUNT_THRESHOLD", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Memory.MaxTurns, "file value")
	assert.Equal(t, 7, cfg.Memory.CountThreshold, "env wins over file")
}

func TestFlexibleStringSlice_MixedTypes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"channels": {"discord": {"token": "x", "allow_from": ["123", 456]}}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, FlexibleStringSlice{"123", "456"}, cfg.Channels.Discord.AllowFrom)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Memory.MaxTurns = 12
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Memory.MaxTurns)
}

func TestIsAdmin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Payments.AdminUserIDs = FlexibleStringSlice{"42"}
	assert.True(t, cfg.IsAdmin("42"))
	assert.False(t, cfg.IsAdmin("43"))
}
