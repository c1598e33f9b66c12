// Package sysmetrics samples host CPU, memory, disk, GPU and temperature
// readings through gopsutil and the NVIDIA driver tooling.
package sysmetrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// ErrUnavailable is returned when a metric has no usable source on this host.
var ErrUnavailable = errors.Sentinel("metric source unavailable")

// Config controls how the sampler reads the host.
type Config struct {
	// DiskPath is the mount point whose usage is reported.
	DiskPath string

	// CPUWindow is the measurement window for CPU utilization. Sample blocks
	// for roughly this long.
	CPUWindow time.Duration

	// ProbeTTL is how long a GPU/temperature capability probe result is
	// trusted. Zero means probe once per process.
	ProbeTTL time.Duration

	// ThermalRoot is the sysfs thermal class directory used when no hwmon
	// sensor is reported.
	ThermalRoot string
}

// DefaultConfig returns the sampler defaults for the current platform.
func DefaultConfig() Config {
	return Config{
		DiskPath:    DefaultDiskPath(),
		CPUWindow:   100 * time.Millisecond,
		ThermalRoot: "/sys/class/thermal",
	}
}

// DefaultDiskPath is the system drive on Windows and "/" elsewhere.
func DefaultDiskPath() string {
	if runtime.GOOS == "windows" {
		if drive := os.Getenv("SystemDrive"); drive != "" {
			return drive + `\`
		}
		return `C:\`
	}
	return "/"
}

// Sampler reads one snapshot of host metrics per call. GPU and temperature
// sources are discovered lazily and cached, so hosts without them pay the
// probe cost once.
type Sampler struct {
	cfg    Config
	logger *slog.Logger

	probeMu sync.Mutex
	probes  *ttlcache.Cache[Capability, source]

	// Overridable OS readers for testing.
	now           func() time.Time
	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	cpuInfo       func(ctx context.Context) ([]cpu.InfoStat, error)
	cpuCounts     func(ctx context.Context, logical bool) (int, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	partitions    func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	hostInfo      func(ctx context.Context) (*host.InfoStat, error)
	sensors       func(ctx context.Context) ([]host.TemperatureStat, error)
	lookPath      func(file string) (string, error)
	run           func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New creates a Sampler. Zero-valued config fields take their defaults.
// If logger is nil, a no-op logger is used.
func New(cfg Config, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	def := DefaultConfig()
	if cfg.DiskPath == "" {
		cfg.DiskPath = def.DiskPath
	}
	if cfg.CPUWindow <= 0 {
		cfg.CPUWindow = def.CPUWindow
	}
	if cfg.ThermalRoot == "" {
		cfg.ThermalRoot = def.ThermalRoot
	}

	return &Sampler{
		cfg:    cfg,
		logger: logger,
		probes: ttlcache.New[Capability, source](
			ttlcache.WithDisableTouchOnHit[Capability, source](),
		),
		now:           time.Now,
		cpuPercent:    cpu.PercentWithContext,
		cpuInfo:       cpu.InfoWithContext,
		cpuCounts:     cpu.CountsWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		partitions:    disk.PartitionsWithContext,
		hostInfo:      host.InfoWithContext,
		sensors:       host.SensorsTemperaturesWithContext,
		lookPath:      exec.LookPath,
		run:           runCommand,
	}
}

// Sample reads every metric once. Percentages are clamped to [0, 100];
// temperature is reported in Celsius unclamped. A metric that cannot be
// read is left nil and noted in Warnings. The cycle fails only when CPU,
// RAM and disk all fail, or when ctx is cancelled.
func (s *Sampler) Sample(ctx context.Context) (collectors.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return collectors.Snapshot{}, err
	}

	snap := collectors.Snapshot{Timestamp: s.now()}
	var errs []error
	fail := func(m collectors.Metric, err error) {
		errs = append(errs, errors.WithMessage(err, string(m)))
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("%s: %v", m, err))
	}

	if v, err := s.readCPU(ctx); err != nil {
		fail(collectors.MetricCPU, err)
	} else {
		snap.CPU = collectors.Percent(v)
	}

	if v, err := s.readRAM(ctx); err != nil {
		fail(collectors.MetricRAM, err)
	} else {
		snap.RAM = collectors.Percent(v)
	}

	if v, err := s.readDisk(ctx); err != nil {
		fail(collectors.MetricDisk, err)
	} else {
		snap.Disk = collectors.Percent(v)
	}

	if err := ctx.Err(); err != nil {
		return collectors.Snapshot{}, err
	}

	if snap.CPU == nil && snap.RAM == nil && snap.Disk == nil {
		return collectors.Snapshot{}, errors.Errorf("%w: %v", collectors.ErrNoMetrics, errors.Combine(errs...))
	}

	if v, err := s.source(ctx, CapabilityGPU).Read(ctx); err == nil {
		snap.GPU = collectors.Percent(v)
	} else if !errors.Is(err, ErrUnavailable) {
		fail(collectors.MetricGPU, err)
	}

	if v, err := s.source(ctx, CapabilityTemperature).Read(ctx); err == nil {
		snap.Temperature = collectors.Float(v)
	} else if !errors.Is(err, ErrUnavailable) {
		fail(collectors.MetricTemp, err)
	}

	if err := ctx.Err(); err != nil {
		return collectors.Snapshot{}, err
	}

	s.logger.Debug("sysmetrics sampled",
		"cpu", formatReading(snap.CPU),
		"ram", formatReading(snap.RAM),
		"disk", formatReading(snap.Disk),
		"gpu", formatReading(snap.GPU),
		"temp", formatReading(snap.Temperature),
		"warnings", len(snap.Warnings),
	)

	return snap, nil
}

func (s *Sampler) readCPU(ctx context.Context) (float64, error) {
	pcts, err := s.cpuPercent(ctx, s.cfg.CPUWindow, false)
	if err != nil {
		return 0, errors.Wrap(err, "read cpu percent")
	}
	if len(pcts) == 0 {
		return 0, errors.New("cpu percent: empty result")
	}
	return pcts[0], nil
}

func (s *Sampler) readRAM(ctx context.Context) (float64, error) {
	vm, err := s.virtualMemory(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "read virtual memory")
	}
	return vm.UsedPercent, nil
}

func (s *Sampler) readDisk(ctx context.Context) (float64, error) {
	u, err := s.diskUsage(ctx, s.cfg.DiskPath)
	if err != nil {
		return 0, errors.Wrapf(err, "read disk usage of %s", s.cfg.DiskPath)
	}
	return u.UsedPercent, nil
}

func formatReading(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

var _ collectors.Sampler = (*Sampler)(nil)
