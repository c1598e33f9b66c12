// Package manpage generates a roff-formatted man page for host-pulse.
//
// Commands and flags are read from the live cobra tree and key bindings
// from the dashboard, so the page cannot drift from the binary.
//
// Usage:
//
//	host-pulse man | man -l -
//	host-pulse man > ~/.local/share/man/man1/host-pulse.1
package manpage

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Build identifies the binary the page describes.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Generate produces a complete man(1) page for root.
func Generate(root *cobra.Command, bindings []key.Binding, build Build) string {
	var b strings.Builder

	writeHeader(&b, build.Version)
	writeName(&b, root)
	writeSynopsis(&b, root)
	writeDescription(&b, root)
	writeGlobalOptions(&b, root)
	writeCommands(&b, root)
	writeKeybindings(&b, bindings)
	writeFiles(&b)
	writeEnvironment(&b)
	writeExitStatus(&b)
	writeFooter(&b, build)

	return b.String()
}

// roffEscape escapes special roff characters in a string.
func roffEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `-`, `\-`)
	if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "'") {
		s = `\&` + s
	}
	return s
}

func writeHeader(b *strings.Builder, version string) {
	month := time.Now().Format("January 2006")
	fmt.Fprintf(b, ".TH HOST-PULSE 1 \"%s\" \"host-pulse %s\" \"User Commands\"\n", month, version)
}

func writeName(b *strings.Builder, root *cobra.Command) {
	fmt.Fprintf(b, ".SH NAME\n%s \\- %s\n", roffEscape(root.Name()), roffEscape(strings.ToLower(root.Short)))
}

func writeSynopsis(b *strings.Builder, root *cobra.Command) {
	fmt.Fprintf(b, ".SH SYNOPSIS\n.B %s\n[\\fIOPTIONS\\fR] \\fICOMMAND\\fR\n", roffEscape(root.Name()))
}

func writeDescription(b *strings.Builder, root *cobra.Command) {
	b.WriteString(".SH DESCRIPTION\n")
	text := root.Long
	if text == "" {
		text = root.Short
	}
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(roffEscape(line) + "\n")
	}
}

func writeGlobalOptions(b *strings.Builder, root *cobra.Command) {
	b.WriteString(".SH OPTIONS\n")
	writeFlags(b, root.PersistentFlags())
}

func writeFlags(b *strings.Builder, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		b.WriteString(".TP\n")
		name, usage := pflag.UnquoteUsage(f)
		if name != "" {
			fmt.Fprintf(b, ".BR \\-\\-%s \" \\fI%s\\fR\"\n", roffEscape(f.Name), name)
		} else {
			fmt.Fprintf(b, ".B \\-\\-%s\n", roffEscape(f.Name))
		}
		line := roffEscape(usage)
		if f.DefValue != "" && f.DefValue != "false" {
			line += fmt.Sprintf(" Default: %s.", roffEscape(f.DefValue))
		}
		b.WriteString(line + "\n")
	})
}

func writeCommands(b *strings.Builder, root *cobra.Command) {
	b.WriteString(".SH COMMANDS\n")
	var walk func(cmd *cobra.Command, prefix string)
	walk = func(cmd *cobra.Command, prefix string) {
		for _, sub := range cmd.Commands() {
			if !sub.IsAvailableCommand() || sub.IsAdditionalHelpTopicCommand() {
				continue
			}
			path := strings.TrimSpace(prefix + " " + sub.Name())
			fmt.Fprintf(b, ".SS %s\n%s\n", roffEscape(path), roffEscape(sub.Short))
			writeFlags(b, sub.NonInheritedFlags())
			walk(sub, path)
		}
	}
	walk(root, "")
}

func writeKeybindings(b *strings.Builder, bindings []key.Binding) {
	if len(bindings) == 0 {
		return
	}
	b.WriteString(".SH KEYBINDINGS\nActive in the dashboard started by \\fBtui\\fR.\n")
	for _, kb := range bindings {
		fmt.Fprintf(b, ".TP\n.B %s\n%s\n", roffEscape(strings.Join(kb.Keys(), ", ")), roffEscape(kb.Help().Desc))
	}
}

func writeFiles(b *strings.Builder) {
	b.WriteString(`.SH FILES
.TP
.I ~/.config/host\-pulse/config.yaml
Configuration file (YAML). Reloaded while running; an invalid edit is
rejected and the previous configuration stays in effect.
.TP
.I ~/.config/host\-pulse/host\-pulse.env
Optional dotenv file with HOST_PULSE_* overrides.
.TP
.I ~/.cache/host\-pulse/snapshot.json
Latest snapshot with per-metric window statistics.
.TP
.I ~/.cache/host\-pulse/health.json
Loop health, read by \fBstatus\fR.
.TP
.I ~/.cache/host\-pulse/host\-pulse.pid
PID file of the headless daemon.
.TP
.I ~/.local/state/host\-pulse/logs/
Rotated JSON log files.
`)
}

func writeEnvironment(b *strings.Builder) {
	b.WriteString(".SH ENVIRONMENT\n")
	vars := []struct{ name, desc string }{
		{"HOST_PULSE_INTERVAL", "Sampling interval, e.g. 2s."},
		{"HOST_PULSE_HISTORY_LENGTH", "Samples kept per metric."},
		{"HOST_PULSE_DISK_PATH", "Mount point whose usage is reported."},
		{"HOST_PULSE_GRACE_PERIOD", "Minimum time between repeated alerts for one metric."},
		{"HOST_PULSE_THRESHOLD_CPU", "Alert threshold; likewise _RAM, _GPU, _DISK and _TEMP."},
		{"HOST_PULSE_DESKTOP_NOTIFY", "Enable or disable desktop notifications."},
		{"HOST_PULSE_LOG_LEVEL", "debug, info, warn or error."},
		{"HOST_PULSE_LOG_DIR", "Directory for rotated log files."},
		{"HOST_PULSE_STATUS_LISTEN", "Address of the HTTP status endpoint."},
		{"HOST_PULSE_CACHE_DIR", "Directory for the snapshot, health and PID files."},
	}
	for _, v := range vars {
		fmt.Fprintf(b, ".TP\n.B %s\n%s\n", v.name, roffEscape(v.desc))
	}
}

func writeExitStatus(b *strings.Builder) {
	b.WriteString(".SH EXIT STATUS\n")
	b.WriteString(".TP\n.B 0\n")
	b.WriteString("Success. For \\fBstatus\\fR, the daemon is sampling.\n")
	b.WriteString(".TP\n.B 1\n")
	b.WriteString("Failure. For \\fBstatus\\fR, the health record is missing, stale or stopped.\n")
}

func writeFooter(b *strings.Builder, build Build) {
	fmt.Fprintf(b, ".SH VERSION\n%s (%s) built %s\n", build.Version, build.Commit, build.Date)
}
