package sysmetrics

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/jellydator/ttlcache/v3"
	"github.com/shirou/gopsutil/v3/host"
)

// Capability names an optional metric source discovered at runtime.
type Capability string

const (
	CapabilityGPU         Capability = "gpu"
	CapabilityTemperature Capability = "temperature"
)

// source reads one optional metric. Hosts without the hardware get an
// unavailable source instead of a nil check at every call site.
type source interface {
	Name() string
	Read(ctx context.Context) (float64, error)
}

type unavailable struct {
	reason string
}

func (u unavailable) Name() string { return "none" }

func (u unavailable) Read(context.Context) (float64, error) {
	return 0, errors.WithMessage(ErrUnavailable, u.reason)
}

// Source reports which backend currently serves c, probing if needed.
func (s *Sampler) Source(ctx context.Context, c Capability) string {
	return s.source(ctx, c).Name()
}

// Available reports whether c has a usable source on this host.
func (s *Sampler) Available(ctx context.Context, c Capability) bool {
	_, ok := s.source(ctx, c).(unavailable)
	return !ok
}

// ResetProbes forgets every cached capability result.
func (s *Sampler) ResetProbes() {
	s.probes.DeleteAll()
}

func (s *Sampler) source(ctx context.Context, c Capability) source {
	if item := s.probes.Get(c); item != nil {
		return item.Value()
	}

	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	if item := s.probes.Get(c); item != nil {
		return item.Value()
	}

	var src source
	switch c {
	case CapabilityGPU:
		src = s.probeGPU(ctx)
	case CapabilityTemperature:
		src = s.probeTemperature(ctx)
	default:
		src = unavailable{reason: "unknown capability " + string(c)}
	}

	// A probe cut short by cancellation says nothing about the host.
	if ctx.Err() != nil {
		return src
	}

	ttl := s.cfg.ProbeTTL
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.probes.Set(c, src, ttl)
	s.logger.Info("capability probed", "capability", string(c), "source", src.Name())
	return src
}

func (s *Sampler) probeGPU(ctx context.Context) source {
	path, err := s.lookPath("nvidia-smi")
	if err != nil {
		return unavailable{reason: "nvidia-smi not found"}
	}
	smi := nvidiaSMI{path: path, run: s.run}
	if _, err := smi.Read(ctx); err != nil {
		s.logger.Debug("nvidia-smi probe failed", "error", err)
		return unavailable{reason: "nvidia-smi query failed"}
	}
	return smi
}

func (s *Sampler) probeTemperature(ctx context.Context) source {
	sensors := sensorTemps{read: s.sensors}
	_, err := sensors.Read(ctx)
	if err == nil {
		return sensors
	}
	s.logger.Debug("hwmon sensors unusable", "error", err)

	zones := thermalZones{root: s.cfg.ThermalRoot}
	if _, err = zones.Read(ctx); err == nil {
		return zones
	}
	s.logger.Debug("thermal zones unusable", "error", err)

	return unavailable{reason: "no temperature sensor"}
}

// GPUStat is one row of nvidia-smi output.
type GPUStat struct {
	Name           string  `json:"name"`
	Utilization    float64 `json:"utilization_percent"`
	MemoryUsedMiB  float64 `json:"memory_used_mib"`
	MemoryTotalMiB float64 `json:"memory_total_mib"`
	Temperature    float64 `json:"temperature_celsius"`
}

var gpuQueryArgs = []string{
	"--query-gpu=name,utilization.gpu,memory.used,memory.total,temperature.gpu",
	"--format=csv,noheader,nounits",
}

type nvidiaSMI struct {
	path string
	run  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (n nvidiaSMI) Name() string { return "nvidia-smi" }

// Read returns the utilization of the first GPU.
func (n nvidiaSMI) Read(ctx context.Context) (float64, error) {
	gpus, err := n.Query(ctx)
	if err != nil {
		return 0, err
	}
	return gpus[0].Utilization, nil
}

// Query returns one GPUStat per device.
func (n nvidiaSMI) Query(ctx context.Context) ([]GPUStat, error) {
	out, err := n.run(ctx, n.path, gpuQueryArgs...)
	if err != nil {
		return nil, errors.Wrap(err, "run nvidia-smi")
	}
	return parseGPUQuery(string(out))
}

func parseGPUQuery(out string) ([]GPUStat, error) {
	var gpus []GPUStat
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 5 {
			return nil, errors.Errorf("nvidia-smi: unexpected line %q", line)
		}
		stat := GPUStat{Name: strings.TrimSpace(fields[0])}
		nums := []*float64{&stat.Utilization, &stat.MemoryUsedMiB, &stat.MemoryTotalMiB, &stat.Temperature}
		for i, dst := range nums {
			raw := strings.TrimSpace(fields[i+1])
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				// Older drivers print "[N/A]" for unsupported fields.
				if i == 0 {
					return nil, errors.Wrapf(err, "nvidia-smi: parse utilization %q", raw)
				}
				continue
			}
			*dst = v
		}
		gpus = append(gpus, stat)
	}
	if len(gpus) == 0 {
		return nil, errors.New("nvidia-smi: no GPUs reported")
	}
	return gpus, nil
}

// cpuSensorHints select the sensor most likely to track the CPU package.
var cpuSensorHints = []string{"cpu", "core", "package", "pkg", "tctl", "tdie"}

// validTemp drops readings that are not numbers. Values are reported as
// read, without clamping.
func validTemp(c float64) bool {
	return !math.IsNaN(c) && !math.IsInf(c, 0)
}

type sensorTemps struct {
	read func(ctx context.Context) ([]host.TemperatureStat, error)
}

func (sensorTemps) Name() string { return "hwmon" }

func (s sensorTemps) Read(ctx context.Context) (float64, error) {
	temps, err := s.read(ctx)
	// gopsutil reports unreadable inputs as warnings next to usable data.
	if err != nil && len(temps) == 0 {
		return 0, errors.Wrap(err, "read sensors")
	}
	keys := make([]string, len(temps))
	values := make([]float64, len(temps))
	for i, t := range temps {
		keys[i] = t.SensorKey
		values[i] = t.Temperature
	}
	if v, ok := pickTemperature(keys, values); ok {
		return v, nil
	}
	return 0, errors.New("no valid sensor reading")
}

// pickTemperature returns the first valid reading whose label matches a CPU
// hint, else the first valid reading.
func pickTemperature(labels []string, values []float64) (float64, bool) {
	fallback, found := 0.0, false
	for i, label := range labels {
		if !validTemp(values[i]) {
			continue
		}
		lower := strings.ToLower(label)
		for _, hint := range cpuSensorHints {
			if strings.Contains(lower, hint) {
				return values[i], true
			}
		}
		if !found {
			fallback, found = values[i], true
		}
	}
	return fallback, found
}

// thermalZones reads /sys/class/thermal/thermal_zone*/temp, reported in
// millidegrees Celsius.
type thermalZones struct {
	root string
}

func (thermalZones) Name() string { return "thermal_zone" }

func (z thermalZones) Read(context.Context) (float64, error) {
	dirs, err := filepath.Glob(filepath.Join(z.root, "thermal_zone*"))
	if err != nil {
		return 0, errors.Wrap(err, "glob thermal zones")
	}
	if len(dirs) == 0 {
		return 0, errors.Errorf("no thermal zones under %s", z.root)
	}
	sort.Strings(dirs)

	var labels []string
	var values []float64
	for _, dir := range dirs {
		raw, err := os.ReadFile(filepath.Join(dir, "temp"))
		if err != nil {
			continue
		}
		milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
		if err != nil {
			continue
		}
		kind, _ := os.ReadFile(filepath.Join(dir, "type"))
		labels = append(labels, strings.TrimSpace(string(kind)))
		values = append(values, milli/1000)
	}
	if v, ok := pickTemperature(labels, values); ok {
		return v, nil
	}
	return 0, errors.New("no readable thermal zone")
}
