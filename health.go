package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/host-pulse/cache"
	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/display/widgets"
	"gitlab.com/tinyland/lab/host-pulse/internal/format"
	"gitlab.com/tinyland/lab/host-pulse/status"
)

// errUnhealthy makes the process exit non-zero after the report is printed.
var errUnhealthy = errors.Sentinel("daemon unhealthy")

// healthReport is the --json form of the status command.
type healthReport struct {
	Status   string                `json:"status"`
	Stale    bool                  `json:"stale"`
	Age      string                `json:"age,omitempty"`
	Health   *cache.HealthRecord   `json:"health,omitempty"`
	Snapshot *cache.SnapshotRecord `json:"snapshot,omitempty"`
	Grade    *status.HostStatus    `json:"grade,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report the state recorded by a running daemon",
		Long:  "status reads the health and snapshot documents written by `host-pulse run`\nand exits non-zero when they are missing, stale or stopped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _ := opts.loadOrDefault()
			return checkHealth(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, time.Now(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

// checkHealth prints the cached daemon state and returns errUnhealthy when
// the daemon is not producing fresh samples.
func checkHealth(stdout, stderr io.Writer, cfg *config.Config, now time.Time, jsonOutput bool) error {
	report := readHealth(cfg, now)

	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode report")
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		printHealth(stdout, stderr, report)
	}

	if report.Stale || (report.Status != cache.StatusOK && report.Status != cache.StatusDegraded) {
		return errUnhealthy
	}
	return nil
}

func readHealth(cfg *config.Config, now time.Time) healthReport {
	store, err := cache.NewStore(cfg.Status.CacheDir, nil)
	if err != nil {
		return healthReport{Status: "missing", Error: err.Error()}
	}

	health, _, err := cache.GetTyped[cache.HealthRecord](store, cache.KeyHealth)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, cache.ErrNotFound) {
			msg = "no health record found"
		}
		return healthReport{Status: "missing", Error: msg}
	}

	report := healthReport{
		Status: health.Status,
		Stale:  health.Stale(now),
		Age:    now.Sub(health.UpdatedAt).Round(time.Second).String(),
		Health: health,
	}

	if snap, _, err := cache.GetTyped[cache.SnapshotRecord](store, cache.KeySnapshot); err == nil {
		report.Snapshot = snap
		grade := status.NewEvaluator(cfg, 0).Evaluate(snap.Snapshot)
		report.Grade = &grade
	}
	return report
}

func printHealth(stdout, stderr io.Writer, r healthReport) {
	switch {
	case r.Health == nil:
		fmt.Fprintf(stderr, "daemon not running (%s)\n", r.Error)
		return
	case r.Status == cache.StatusStopped:
		fmt.Fprintf(stderr, "daemon stopped (last update %s ago)\n", r.Age)
	case r.Stale:
		fmt.Fprintf(stderr, "daemon stale (last update %s ago, threshold %s)\n", r.Age, format.FormatDuration(2*r.Health.Interval))
	default:
		fmt.Fprintf(stdout, "daemon %s (last update %s ago)\n", r.Status, r.Age)
	}

	fmt.Fprintln(stdout, format.KeyValue([][2]string{
		{"pid", fmt.Sprint(r.Health.PID)},
		{"interval", format.FormatDuration(r.Health.Interval)},
		{"samples", fmt.Sprintf("%d (%d failed)", r.Health.Samples, r.Health.Failures)},
	}))

	if r.Grade == nil {
		return
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, widgets.RenderBadge(r.Grade.Overall, "overall "+r.Grade.Overall.String()))

	width := gaugeWidth()
	for _, ms := range r.Grade.Metrics {
		fmt.Fprintln(stdout, metricLine(ms, r.Snapshot, width))
	}
}

// metricLine renders one graded metric: badge, gauge, value and window stats.
func metricLine(ms status.MetricStatus, rec *cache.SnapshotRecord, width int) string {
	label := fmt.Sprintf("%-12s", ms.Metric.Label())
	if ms.Value == nil {
		return widgets.RenderBadge(ms.Level, label) + " " + strings.Repeat(" ", width) + "    n/a"
	}

	value, threshold := *ms.Value, ms.Threshold
	if !ms.Metric.IsPercent() {
		value = value / widgets.TemperatureScale * 100
		threshold = threshold / widgets.TemperatureScale * 100
	}

	line := widgets.RenderBadge(ms.Level, label) + " " +
		widgets.RenderMiniGauge(value, threshold, width) + " " +
		widgets.FormatValue(*ms.Value, ms.Metric.Unit())

	if st, ok := rec.Stats[ms.Metric]; ok && st.Count > 0 {
		line += fmt.Sprintf("  min %.1f avg %.1f max %.1f", st.Min, st.Avg, st.Max)
	}
	return line
}

// gaugeWidth sizes the bars to a quarter of the terminal.
func gaugeWidth() int {
	const fallback = 20
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		return fallback
	}
	return min(max(w/4, 10), 30)
}
