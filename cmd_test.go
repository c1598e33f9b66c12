package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/host-pulse/cache"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// writeConfig stores a valid config whose cache lives in a temp dir.
func writeConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Status.CacheDir = filepath.Join(dir, "cache")
	cfg.Logging.Dir = ""
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))
	return path, cfg
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "host-pulse "+version)
}

func TestManCommand(t *testing.T) {
	out, _, err := execute(t, "man")
	require.NoError(t, err)
	assert.Contains(t, out, ".TH HOST-PULSE 1")
	assert.Contains(t, out, ".SS config init")
	assert.Contains(t, out, "clear history and re\\-probe")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host-pulse", "config.yaml")

	out, _, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)
	assert.FileExists(t, path)

	_, _, err = execute(t, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, _, err = execute(t, "--config", path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	path, _ := writeConfig(t)

	out, _, err := execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")

	require.NoError(t, os.WriteFile(path, []byte("monitor:\n  interval: 1h\n"), 0o644))
	_, _, err = execute(t, "--config", path, "config", "validate")
	assert.ErrorContains(t, err, "monitor.interval")
}

func TestConfigShow_LogLevelFlag(t *testing.T) {
	path, _ := writeConfig(t)

	out, _, err := execute(t, "--config", path, "--log-level", "debug", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "interval:")
	assert.Contains(t, out, "level: debug")
}

func TestSampleCommand(t *testing.T) {
	path, _ := writeConfig(t)

	orig := newSampler
	t.Cleanup(func() { newSampler = orig })
	newSampler = func(*config.Config, *slog.Logger) collectors.Sampler {
		snap := collectors.MockSnapshot(time.Time{}, 42)
		snap.CPU = collectors.Percent(95)
		return collectors.NewScriptedSampler(time.Now, collectors.ScriptStep{Snapshot: snap})
	}

	out, _, err := execute(t, "--config", path, "sample")
	require.NoError(t, err)

	var doc struct {
		Snapshot struct {
			CPU *float64 `json:"cpu_percent"`
		} `json:"snapshot"`
		Status struct {
			Overall string `json:"overall"`
		} `json:"status"`
		System json.RawMessage `json:"system"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.NotNil(t, doc.Snapshot.CPU)
	assert.Equal(t, 95.0, *doc.Snapshot.CPU)
	assert.Equal(t, "critical", doc.Status.Overall)
	assert.Empty(t, doc.System, "scripted samplers carry no host info")
}

func TestStatusCommand_Missing(t *testing.T) {
	path, _ := writeConfig(t)

	_, stderr, err := execute(t, "--config", path, "status")
	assert.True(t, errors.Is(err, errUnhealthy))
	assert.Contains(t, stderr, "daemon not running")
}

func writeCachedUpdate(t *testing.T, cfg *config.Config, at time.Time) {
	t.Helper()
	store, err := cache.NewStore(cfg.Status.CacheDir, nil)
	require.NoError(t, err)
	w := cache.NewWriter(store, 0, nil)
	require.NoError(t, w.WriteUpdate(monitor.Update{
		Snapshot: collectors.MockSnapshot(at, 50),
		State: monitor.State{
			Phase:      monitor.PhaseRunning,
			Interval:   time.Second,
			LastSample: at,
			Samples:    7,
		},
	}))
}

func TestStatusCommand_Healthy(t *testing.T) {
	path, cfg := writeConfig(t)
	writeCachedUpdate(t, cfg, time.Now())

	out, _, err := execute(t, "--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "daemon ok")
	assert.Contains(t, out, "7 (0 failed)")
	assert.Contains(t, out, "CPU")
	assert.Contains(t, out, "50.0%")
}

func TestStatusCommand_JSONStale(t *testing.T) {
	path, cfg := writeConfig(t)
	writeCachedUpdate(t, cfg, time.Now().Add(-time.Minute))

	out, _, err := execute(t, "--config", path, "status", "--json")
	assert.True(t, errors.Is(err, errUnhealthy))

	var report struct {
		Status string              `json:"status"`
		Stale  bool                `json:"stale"`
		Health *cache.HealthRecord `json:"health"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Stale)
	assert.Equal(t, cache.StatusOK, report.Status)
	require.NotNil(t, report.Health)
	assert.Equal(t, 7, report.Health.Samples)
}
