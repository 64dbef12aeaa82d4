package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendSSD, cfg.ModelBackend)
	assert.Equal(t, DefaultScoreThreshold, cfg.ScoreThreshold)
	assert.Equal(t, DefaultHistoryCapacity, cfg.HistoryCapacity)
	assert.Empty(t, cfg.CameraNames)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("SCORE_THRESHOLD", "0.75")
	t.Setenv("HISTORY_CAPACITY", "25")
	t.Setenv("CAMERA_NAMES", "10.0.0.2=door, 10.0.0.3=garage,broken")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 0.75, cfg.ScoreThreshold)
	assert.Equal(t, 25, cfg.HistoryCapacity)
	assert.Equal(t, map[string]string{"10.0.0.2": "door", "10.0.0.3": "garage"}, cfg.CameraNames)
	assert.True(t, cfg.LogDevelopment)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "config.yaml")
	content := "port: 7000\nscoreThreshold: 0.8\nhistoryCapacity: 3\ncameraNames:\n  192.168.1.5: porch\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HISTORY_CAPACITY", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 0.8, cfg.ScoreThreshold)
	assert.Equal(t, 4, cfg.HistoryCapacity)
	assert.Equal(t, "porch", cfg.CameraNames["192.168.1.5"])
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FRAME_INTERVAL_MS=250\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("FRAME_INTERVAL_MS") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.FrameInterval)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCORE_THRESHOLD", "1.5")
	t.Setenv("HISTORY_CAPACITY", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultScoreThreshold, cfg.ScoreThreshold)
	assert.Equal(t, DefaultHistoryCapacity, cfg.HistoryCapacity)
}

func TestLoad_RemoteRequiresURL(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MODEL_BACKEND", "remote")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("REMOTE_MODEL_URL", "http://localhost:9000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRemote, cfg.ModelBackend)
}

func TestLoad_UnknownBackend(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MODEL_BACKEND", "tflite")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1,2"), 0644))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

// chdir switches into dir for the duration of the test and restores the
// previous working directory on cleanup (equivalent of Go 1.24's t.Chdir).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
