package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestNew_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, closer, err := New(Options{Level: "debug", Dir: dir, MaxSizeMB: 1, MaxBackups: 1, Console: &console})
	require.NoError(t, err)

	logger.Debug("hello", "n", 1)
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "msg=hello")

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(1), rec["n"])
}

func TestNew_LevelFilters(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := New(Options{Level: "warn", Console: &console})
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")
	assert.NotContains(t, console.String(), "quiet")
	assert.Contains(t, console.String(), "loud")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(Options{Level: "verbose"})
	assert.Error(t, err)
}

func TestNew_NoSinks(t *testing.T) {
	logger, closer, err := New(Options{})
	require.NoError(t, err)
	logger.Error("discarded")
	assert.NoError(t, closer.Close())
}

func TestMetricsEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	snap := collectors.Snapshot{
		Timestamp: time.Now(),
		CPU:       collectors.Percent(12.5),
		Disk:      collectors.Percent(70),
	}

	Log(context.Background(), logger, slog.LevelInfo, Metrics(snap))

	var rec struct {
		Msg   string         `json:"msg"`
		Event map[string]any `json:"event"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "metrics", rec.Msg)
	assert.Equal(t, "metrics", rec.Event["kind"])
	assert.Equal(t, 12.5, rec.Event["cpu"])
	assert.Equal(t, float64(70), rec.Event["disk"])
	_, hasGPU := rec.Event["gpu"]
	assert.False(t, hasGPU)
}

type fakeInfo struct{}

func (fakeInfo) LogValue() slog.Value {
	return slog.GroupValue(slog.String("hostname", "box"))
}

func TestSystemInfoAndPerformanceEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Log(context.Background(), logger, slog.LevelInfo, SystemInfo(fakeInfo{}))
	Log(context.Background(), logger, slog.LevelWarn, Performance(slog.Duration("interval", 1500*time.Millisecond)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "event.kind=system-info")
	assert.Contains(t, lines[0], "event.hostname=box")
	assert.Contains(t, lines[1], "event.kind=performance")
	assert.Contains(t, lines[1], "event.interval=1.5s")
}
