package sysmetrics

import (
	"context"
	"log/slog"
	"runtime"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
)

// SystemInfo describes the host once at startup.
type SystemInfo struct {
	Hostname        string            `json:"hostname"`
	OS              string            `json:"os"`
	Platform        string            `json:"platform"`
	PlatformVersion string            `json:"platform_version"`
	KernelVersion   string            `json:"kernel_version"`
	Arch            string            `json:"arch"`
	CPUModel        string            `json:"cpu_model"`
	LogicalCPUs     int               `json:"logical_cpus"`
	MemoryTotal     datasize.ByteSize `json:"memory_total"`
	Disks           []DiskInfo        `json:"disks"`
	GPUAvailable    bool              `json:"gpu_available"`
	GPUs            []GPUStat         `json:"gpus,omitempty"`
	TempSource      string            `json:"temperature_source"`
}

// DiskInfo summarizes one mounted partition.
type DiskInfo struct {
	Mountpoint  string            `json:"mountpoint"`
	Fstype      string            `json:"fstype"`
	Total       datasize.ByteSize `json:"total"`
	Used        datasize.ByteSize `json:"used"`
	UsedPercent float64           `json:"used_percent"`
}

// SystemInfo gathers static host facts. Partial information is returned
// together with the combined error of every part that could not be read.
func (s *Sampler) SystemInfo(ctx context.Context) (SystemInfo, error) {
	info := SystemInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}
	var errs []error

	if h, err := s.hostInfo(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "host info"))
	} else {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelVersion = h.KernelVersion
		if h.KernelArch != "" {
			info.Arch = h.KernelArch
		}
	}

	if cpus, err := s.cpuInfo(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "cpu info"))
	} else if len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if n, err := s.cpuCounts(ctx, true); err != nil {
		errs = append(errs, errors.Wrap(err, "cpu count"))
	} else {
		info.LogicalCPUs = n
	}

	if vm, err := s.virtualMemory(ctx); err != nil {
		errs = append(errs, errors.Wrap(err, "memory"))
	} else {
		info.MemoryTotal = datasize.ByteSize(vm.Total)
	}

	parts, err := s.partitions(ctx, false)
	if err != nil {
		errs = append(errs, errors.Wrap(err, "partitions"))
	}
	for _, p := range parts {
		u, err := s.diskUsage(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		info.Disks = append(info.Disks, DiskInfo{
			Mountpoint:  p.Mountpoint,
			Fstype:      p.Fstype,
			Total:       datasize.ByteSize(u.Total),
			Used:        datasize.ByteSize(u.Used),
			UsedPercent: u.UsedPercent,
		})
	}

	info.GPUAvailable = s.Available(ctx, CapabilityGPU)
	if smi, ok := s.source(ctx, CapabilityGPU).(nvidiaSMI); ok {
		gpus, err := smi.Query(ctx)
		if err != nil {
			errs = append(errs, errors.Wrap(err, "gpu info"))
		}
		info.GPUs = gpus
	}
	info.TempSource = s.Source(ctx, CapabilityTemperature)

	return info, errors.Combine(errs...)
}

// LogValue renders the info as a single structured log group.
func (i SystemInfo) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("hostname", i.Hostname),
		slog.String("os", i.OS),
		slog.String("platform", i.Platform+" "+i.PlatformVersion),
		slog.String("kernel", i.KernelVersion),
		slog.String("arch", i.Arch),
		slog.String("cpu_model", i.CPUModel),
		slog.Int("logical_cpus", i.LogicalCPUs),
		slog.String("memory_total", i.MemoryTotal.HumanReadable()),
		slog.Int("disks", len(i.Disks)),
		slog.String("temperature_source", i.TempSource),
	}
	if len(i.GPUs) == 0 {
		attrs = append(attrs, slog.String("gpu", "none"))
	}
	for _, g := range i.GPUs {
		attrs = append(attrs, slog.String("gpu", g.Name))
	}
	return slog.GroupValue(attrs...)
}
