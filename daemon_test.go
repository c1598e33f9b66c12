package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"emperror.dev/errors"

	"gitlab.com/tinyland/lab/host-pulse/cache"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
)

// newTestConfig returns a valid config that writes only under a temp dir
// and never raises desktop notifications.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Monitor.Interval = config.Duration{Duration: monitor.MinInterval}
	cfg.Monitor.CPUWindow = config.Duration{}
	cfg.Notify.Desktop = false
	cfg.Notify.Log = false
	cfg.Logging.Dir = ""
	cfg.Status.CacheDir = filepath.Join(t.TempDir(), "cache")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

// probingSampler counts ResetProbes calls on top of a scripted sampler.
type probingSampler struct {
	*collectors.ScriptedSampler
	resets atomic.Int32
}

func (p *probingSampler) ResetProbes() { p.resets.Add(1) }

func newTestDaemon(t *testing.T, sampler collectors.Sampler, opts daemonOptions) *daemon {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	d, err := newDaemon(newTestConfig(t), sampler, opts, logger)
	if err != nil {
		t.Fatalf("newDaemon() error: %v", err)
	}
	return d
}

func scripted(value float64) *collectors.ScriptedSampler {
	return collectors.NewScriptedSampler(time.Now, collectors.ScriptStep{
		Snapshot: collectors.MockSnapshot(time.Time{}, value),
	})
}

func TestDaemon_WritePIDFile(t *testing.T) {
	d := newTestDaemon(t, scripted(10), daemonOptions{})

	if err := d.writePIDFile(); err != nil {
		t.Fatalf("writePIDFile() error: %v", err)
	}

	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		t.Fatalf("read PID file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("PID file content %q: %v", data, err)
	}
	if pid != os.Getpid() {
		t.Errorf("PID file contains %d, want %d", pid, os.Getpid())
	}

	d.removePIDFile()
	if _, err := os.Stat(d.pidFile); !os.IsNotExist(err) {
		t.Error("PID file should be removed")
	}
}

func TestDaemon_IsRunning_NoFile(t *testing.T) {
	d := newTestDaemon(t, scripted(10), daemonOptions{})

	running, pid := d.isRunning()
	if running || pid != 0 {
		t.Errorf("isRunning() = %v, %d; want false, 0", running, pid)
	}
}

func TestDaemon_IsRunning_CurrentProcess(t *testing.T) {
	d := newTestDaemon(t, scripted(10), daemonOptions{})
	if err := d.writePIDFile(); err != nil {
		t.Fatal(err)
	}

	running, pid := d.isRunning()
	if !running {
		t.Error("isRunning() = false for the current process")
	}
	if pid != os.Getpid() {
		t.Errorf("isRunning() pid = %d, want %d", pid, os.Getpid())
	}
}

func TestDaemon_IsRunning_StalePID(t *testing.T) {
	d := newTestDaemon(t, scripted(10), daemonOptions{})

	stalePID := 4999999
	if err := os.MkdirAll(filepath.Dir(d.pidFile), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(stalePID)), 0o644); err != nil {
		t.Fatal(err)
	}

	if running, _ := d.isRunning(); running {
		t.Error("isRunning() = true for a stale PID")
	}
	if _, err := os.Stat(d.pidFile); !os.IsNotExist(err) {
		t.Error("stale PID file should be removed")
	}
}

func TestDaemon_IsRunning_CorruptPID(t *testing.T) {
	d := newTestDaemon(t, scripted(10), daemonOptions{})

	if err := os.MkdirAll(filepath.Dir(d.pidFile), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(d.pidFile, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if running, _ := d.isRunning(); running {
		t.Error("isRunning() = true for a corrupt PID file")
	}
	if _, err := os.Stat(d.pidFile); !os.IsNotExist(err) {
		t.Error("corrupt PID file should be removed")
	}
}

func TestDaemon_LockRefusesSecondInstance(t *testing.T) {
	d := newTestDaemon(t, scripted(10), daemonOptions{})
	if err := d.lock(); err != nil {
		t.Fatalf("first lock() error: %v", err)
	}
	defer d.removePIDFile()

	err := d.lock()
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second lock() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestDaemon_RunWritesCache(t *testing.T) {
	d := newTestDaemon(t, scripted(42), daemonOptions{Cache: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var seen atomic.Int32
	err := d.run(ctx, func(u monitor.Update) {
		if seen.Add(1) == 1 {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if seen.Load() == 0 {
		t.Fatal("sink never received an update")
	}

	store, err := cache.NewStore(d.config.Status.CacheDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	snap, _, err := cache.GetTyped[cache.SnapshotRecord](store, cache.KeySnapshot)
	if err != nil {
		t.Fatalf("snapshot record: %v", err)
	}
	if v, ok := snap.Snapshot.Value(collectors.MetricCPU); !ok || v != 42 {
		t.Errorf("cached cpu = %v, %v; want 42", v, ok)
	}

	health, _, err := cache.GetTyped[cache.HealthRecord](store, cache.KeyHealth)
	if err != nil {
		t.Fatalf("health record: %v", err)
	}
	if health.Status != cache.StatusStopped {
		t.Errorf("final health status = %q, want %q", health.Status, cache.StatusStopped)
	}
}

func TestDaemon_Refresh(t *testing.T) {
	sampler := &probingSampler{ScriptedSampler: scripted(30)}
	d := newTestDaemon(t, sampler, daemonOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.run(ctx, func(monitor.Update) { cancel() }); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if len(d.loop.History().View()[collectors.MetricCPU]) == 0 {
		t.Fatal("history should hold the first sample")
	}

	d.refresh()

	if n := len(d.loop.History().View()[collectors.MetricCPU]); n != 0 {
		t.Errorf("history length after refresh = %d, want 0", n)
	}
	if sampler.resets.Load() != 1 {
		t.Errorf("ResetProbes calls = %d, want 1", sampler.resets.Load())
	}
}

func TestDaemon_SetThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	d := newTestDaemon(t, scripted(10), daemonOptions{ConfigPath: path})

	if err := d.setThreshold(collectors.MetricCPU, 65); err != nil {
		t.Fatalf("setThreshold() error: %v", err)
	}
	if got := d.watcher.AlertPolicy().Thresholds[collectors.MetricCPU]; got != 65 {
		t.Errorf("live cpu threshold = %v, want 65", got)
	}

	saved, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got := saved.Alerts.Thresholds["cpu"]; got != 65 {
		t.Errorf("saved cpu threshold = %v, want 65", got)
	}
	if err := d.watcher.Reload(); err != nil {
		t.Errorf("reload of the written file failed: %v", err)
	}

	if err := d.setThreshold(collectors.MetricCPU, 120); err == nil {
		t.Error("expected an out-of-range threshold to be rejected")
	}
	if got := d.watcher.AlertPolicy().Thresholds[collectors.MetricCPU]; got != 65 {
		t.Errorf("cpu threshold after rejected change = %v, want 65", got)
	}
}
