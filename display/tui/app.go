// Package tui is the interactive host-pulse dashboard.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/host-pulse/display/widgets"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/internal/format"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
	"gitlab.com/tinyland/lab/host-pulse/status"
)

// DefaultFrameInterval is the animation tick.
const DefaultFrameInterval = 40 * time.Millisecond

// maxRecentAlerts bounds the alert list kept for display.
const maxRecentAlerts = 5

// DefaultThresholdStep is how far one key press moves a threshold.
const DefaultThresholdStep = 5.0

// UpdateMsg carries one loop update into the program.
type UpdateMsg monitor.Update

// SystemInfoMsg carries the startup host description.
type SystemInfoMsg sysmetrics.SystemInfo

// LoopDoneMsg reports that the loop's update channel closed.
type LoopDoneMsg struct{}

// ConfigReloadedMsg reports that a new configuration took effect.
type ConfigReloadedMsg struct{}

type thresholdSetMsg struct {
	metric collectors.Metric
	value  float64
	err    error
}

type frameMsg time.Time

// Options configures the dashboard.
type Options struct {
	// Policy supplies thresholds for gauges and grading.
	Policy alert.ConfigProvider
	// DiskPath labels the disk card.
	DiskPath string
	// Refresh runs when the user presses r. It may be nil.
	Refresh func()
	// SetThreshold persists a threshold change. Nil makes thresholds
	// read-only.
	SetThreshold func(metric collectors.Metric, value float64) error
	// ThresholdStep defaults to DefaultThresholdStep.
	ThresholdStep float64
	// FrameInterval and AnimationSteps shape value animation.
	FrameInterval  time.Duration
	AnimationSteps int
	// Now is the clock for relative times. Defaults to time.Now.
	Now func() time.Time
}

// Model is the top-level Bubbletea model for the dashboard.
type Model struct {
	opts      Options
	evaluator *status.Evaluator
	help      help.Model

	width  int
	height int
	ready  bool

	snapshot collectors.Snapshot
	view     history.View
	state    monitor.State
	info     *sysmetrics.SystemInfo
	alerts   []alert.Alert
	tweens   []widgets.Tween
	selected collectors.Metric
	notice   string
	received bool
	ticking  bool
	done     bool
}

// NewModel returns a Model waiting for its first update.
func NewModel(opts Options) Model {
	if opts.Policy == nil {
		opts.Policy = alert.StaticPolicy(alert.DefaultPolicy())
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.AnimationSteps <= 0 {
		opts.AnimationSteps = widgets.DefaultAnimationSteps
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ThresholdStep <= 0 {
		opts.ThresholdStep = DefaultThresholdStep
	}

	tweens := make([]widgets.Tween, len(collectors.AllMetrics))
	for i := range tweens {
		tweens[i] = widgets.NewTween(opts.AnimationSteps)
	}

	return Model{
		opts:      opts,
		evaluator: status.NewEvaluator(opts.Policy, 0),
		help:      help.New(),
		tweens:    tweens,
		selected:  collectors.MetricCPU,
	}
}

// Init implements tea.Model. No initial commands are needed.
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) frame() tea.Cmd {
	return tea.Tick(m.opts.FrameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, keys.Refresh):
			if m.opts.Refresh != nil {
				m.opts.Refresh()
			}
			m.view = nil
			m.alerts = nil
		case key.Matches(msg, keys.Next):
			m.selected = m.cycle(1)
		case key.Matches(msg, keys.Prev):
			m.selected = m.cycle(-1)
		case key.Matches(msg, keys.Raise):
			return m, m.adjustThreshold(m.opts.ThresholdStep)
		case key.Matches(msg, keys.Lower):
			return m, m.adjustThreshold(-m.opts.ThresholdStep)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case UpdateMsg:
		return m.applyUpdate(monitor.Update(msg))

	case SystemInfoMsg:
		info := sysmetrics.SystemInfo(msg)
		m.info = &info

	case LoopDoneMsg:
		m.done = true

	case ConfigReloadedMsg:
		m.notice = "configuration reloaded"

	case thresholdSetMsg:
		if msg.err != nil {
			m.notice = "threshold not saved: " + msg.err.Error()
		} else {
			m.notice = fmt.Sprintf("%s alert > %s", msg.metric.Label(), strings.TrimSpace(widgets.FormatValue(msg.value, msg.metric.Unit())))
		}

	case frameMsg:
		animating := false
		tweens := make([]widgets.Tween, len(m.tweens))
		for i, tw := range m.tweens {
			tweens[i] = tw.Step()
			animating = animating || tweens[i].Animating()
		}
		m.tweens = tweens
		if animating {
			return m, m.frame()
		}
		m.ticking = false
	}

	return m, nil
}

func (m Model) applyUpdate(u monitor.Update) (tea.Model, tea.Cmd) {
	m.snapshot = u.Snapshot
	m.view = u.History
	m.state = u.State
	m.received = true

	if len(u.Alerts) > 0 {
		alerts := append(append([]alert.Alert(nil), u.Alerts...), m.alerts...)
		if len(alerts) > maxRecentAlerts {
			alerts = alerts[:maxRecentAlerts]
		}
		m.alerts = alerts
	}

	tweens := make([]widgets.Tween, len(m.tweens))
	animating := false
	for i, metric := range collectors.AllMetrics {
		tweens[i] = m.tweens[i]
		if v, ok := u.Snapshot.Value(metric); ok {
			tweens[i] = tweens[i].Retarget(v)
		}
		animating = animating || tweens[i].Animating()
	}
	m.tweens = tweens

	if animating && !m.ticking {
		m.ticking = true
		return m, m.frame()
	}
	return m, nil
}

// visibleMetrics lists the metrics that get a card. The GPU card is hidden on
// hosts without a GPU source.
func (m Model) visibleMetrics() []collectors.Metric {
	var out []collectors.Metric
	for _, metric := range collectors.AllMetrics {
		if metric == collectors.MetricGPU {
			_, ok := m.snapshot.Value(metric)
			if !ok && (m.info == nil || !m.info.GPUAvailable) {
				continue
			}
		}
		out = append(out, metric)
	}
	return out
}

// cycle returns the metric dir steps away from the selected one.
func (m Model) cycle(dir int) collectors.Metric {
	metrics := m.visibleMetrics()
	idx := 0
	for i, metric := range metrics {
		if metric == m.selected {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(metrics)) % len(metrics)
	return metrics[idx]
}

// adjustThreshold moves the selected metric's threshold by delta, clamped to
// 0..100. The write runs as a command since it may touch the disk.
func (m Model) adjustThreshold(delta float64) tea.Cmd {
	if m.opts.SetThreshold == nil {
		return nil
	}
	metric := m.selected
	current := m.opts.Policy.AlertPolicy().Thresholds[metric]
	value := min(max(current+delta, 0), 100)
	if value == current {
		return nil
	}
	set := m.opts.SetThreshold
	return func() tea.Msg {
		return thresholdSetMsg{metric: metric, value: value, err: set(metric, value)}
	}
}

// Displayed returns the animated value shown for metric.
func (m Model) Displayed(metric collectors.Metric) float64 {
	for i, mm := range collectors.AllMetrics {
		if mm == metric {
			return m.tweens[i].Value()
		}
	}
	return 0
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	content := m.renderContent()
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (m Model) renderHeader() string {
	title := styleTitle.Render("host-pulse")

	grade := status.HostStatus{Overall: status.LevelUnknown}
	if m.received {
		grade = m.evaluator.Evaluate(m.snapshot)
	}
	line := title + "  " + widgets.RenderBadge(grade.Overall, "")

	if m.info != nil {
		host := fmt.Sprintf("%s · %s %s · %s", m.info.Hostname, m.info.Platform, m.info.PlatformVersion, m.info.MemoryTotal.HR())
		line += "  " + styleMuted.Render(format.TruncateWithEllipsis(host, max(m.width-30, 10)))
	}
	return styleHeader.Width(m.width).Render(line)
}

func (m Model) cardTitle(metric collectors.Metric) string {
	if metric == collectors.MetricDisk && m.opts.DiskPath != "" {
		return fmt.Sprintf("Disk (%s)", m.opts.DiskPath)
	}
	return metric.Label()
}

func (m Model) renderContent() string {
	if !m.received {
		msg := "Waiting for the first sample..."
		if m.done {
			msg = "Monitor stopped before a sample was taken."
		}
		return styleContent.Width(m.width).Render(styleMuted.Render(msg))
	}

	policy := m.opts.Policy.AlertPolicy()
	grade := m.evaluator.Evaluate(m.snapshot)
	levels := make(map[collectors.Metric]status.Level, len(grade.Metrics))
	for _, ms := range grade.Metrics {
		levels[ms.Metric] = ms.Level
	}

	metrics := m.visibleMetrics()
	layout := LayoutForSize(DetectLayout(m.width), m.width, len(metrics))

	cards := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		_, ok := m.snapshot.Value(metric)
		cfg := widgets.CardConfig{
			Metric:    metric,
			Title:     m.cardTitle(metric),
			Displayed: m.Displayed(metric),
			Available: ok,
			Threshold: policy.Thresholds[metric],
			Level:     levels[metric],
			Width:     layout.CardWidth,
			Selected:  metric == m.selected && m.opts.SetThreshold != nil,
		}
		if layout.ShowSparklines && (metric == collectors.MetricCPU || metric == collectors.MetricRAM) {
			cfg.History = m.view.Values(metric)
			if cfg.History == nil {
				cfg.History = []float64{}
			}
		}
		cards = append(cards, widgets.RenderCard(cfg))
	}

	var rows []string
	for _, row := range chunk(cards, layout.Columns) {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	sections := []string{lipgloss.JoinVertical(lipgloss.Left, rows...)}
	if len(m.alerts) > 0 {
		sections = append(sections, "", styleMuted.Render(horizontalRule(min(m.width-2, 40))))
		for i, a := range m.alerts {
			if i >= layout.AlertLines {
				break
			}
			sections = append(sections, styleAlert.Render(fmt.Sprintf("%s  %s", a.FiredAt.Format("15:04:05"), a.Message)))
		}
	}
	for _, w := range m.snapshot.Warnings {
		sections = append(sections, styleMuted.Render("! "+w))
	}

	return styleContent.Width(m.width).Render(strings.Join(sections, "\n"))
}

func (m Model) renderFooter() string {
	var parts []string
	if m.received {
		parts = append(parts,
			"every "+format.FormatDuration(m.state.Interval),
			"updated "+format.Since(m.state.LastSample, m.opts.Now()),
		)
		if m.state.ConsecutiveErrors > 0 {
			parts = append(parts, fmt.Sprintf("%d failed samples", m.state.ConsecutiveErrors))
		}
	}
	if m.done {
		parts = append(parts, "stopped")
	}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}

	info := strings.Join(parts, " · ")
	return styleFooter.Width(m.width).Render(m.help.View(keys) + "  " + info)
}
