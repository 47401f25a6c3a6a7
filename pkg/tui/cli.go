// Package tui renders run results and progress for the terminal.
// Simple, streaming output; no full-screen interface.
package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/pipeline"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Foreground(muted).Width(22)
)

const rule = "  ─────────────────────────────────────"

// maxEdges bounds the edges listed in the terminal summary.
const maxEdges = 15

// Header renders the banner.
func Header(version string) string {
	return "\n" + titleStyle.Render("  PROCMAP") + mutedStyle.Render(" "+version) + "\n" +
		mutedStyle.Render("  Directly-follows process maps and KPIs from event logs") + "\n"
}

func field(sb *strings.Builder, label, value string) {
	fmt.Fprintf(sb, "  %s%s\n", labelStyle.Render(label), titleStyle.Render(value))
}

func hours(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2fh", *v)
}

// RenderResult renders the KPI summary and the strongest DFG edges.
func RenderResult(res *pipeline.Result, outputs []string) string {
	var sb strings.Builder
	k := res.KPI

	sb.WriteString("\n" + successStyle.Render("  ✓ ANALYSIS COMPLETE") + "\n\n")
	field(&sb, "Cases", formatNumber(int64(k.Cases)))
	field(&sb, "Events", formatNumber(int64(k.Events)))
	field(&sb, "Activities", fmt.Sprintf("%d", k.UniqueActivities))
	field(&sb, "Events per case", fmt.Sprintf("%.2f", k.AvgEventsPerCase))
	if k.TimeWindow != nil {
		field(&sb, "Time window", k.TimeWindow.FirstEvent.Format(time.RFC3339)+" → "+k.TimeWindow.LastEvent.Format(time.RFC3339))
	}

	t := k.Throughput
	sb.WriteString("\n" + accentStyle.Render("▸ THROUGHPUT") + "\n")
	field(&sb, "Mean / median", hours(t.Mean)+" / "+hours(t.Median))
	field(&sb, "Min / max", hours(t.Min)+" / "+hours(t.Max))
	field(&sb, "P95", hours(t.P95))

	if len(k.TopActivities) > 0 {
		sb.WriteString("\n" + accentStyle.Render("▸ TOP ACTIVITIES") + "\n")
		for i, a := range k.TopActivities {
			fmt.Fprintf(&sb, "  %s %s %s\n",
				mutedStyle.Render(fmt.Sprintf("%2d.", i+1)), a.Activity, mutedStyle.Render(fmt.Sprintf("(%d)", a.Count)))
		}
	}

	if len(res.DFG.Edges) > 0 {
		sb.WriteString("\n" + accentStyle.Render("▸ DIRECTLY-FOLLOWS") + "\n")
		for i, e := range res.DFG.Edges {
			if i == maxEdges {
				sb.WriteString(mutedStyle.Render(fmt.Sprintf("  … %d more", len(res.DFG.Edges)-maxEdges)) + "\n")
				break
			}
			fmt.Fprintf(&sb, "  %s → %s %s\n", e.Source, e.Target, mutedStyle.Render(fmt.Sprintf("×%d", e.Frequency)))
		}
		field(&sb, "Start", strings.Join(res.DFG.StartActivities, ", "))
		field(&sb, "End", strings.Join(res.DFG.EndActivities, ", "))
	}

	if len(outputs) > 0 {
		sb.WriteString("\n" + mutedStyle.Render(rule) + "\n")
		for _, o := range outputs {
			fmt.Fprintf(&sb, "  %s %s\n", mutedStyle.Render("Output:"), codeStyle.Render(o))
		}
	}
	sb.WriteString(Elapsed(res))
	fmt.Fprintf(&sb, "  %s %s\n", mutedStyle.Render("Run:"), mutedStyle.Render(res.RunID))
	return sb.String()
}

// InputInfo describes an input file for the info command.
type InputInfo struct {
	Path    string
	Format  string
	Size    int64
	Rows    int
	Columns []string

	// Required maps each required column to whether the input has it.
	Required map[string]bool

	// Cases and Events are set when validation succeeded.
	Cases  int
	Events int

	// Problem holds the validation error, if any.
	Problem error
}

// RenderInfo renders an input description.
func RenderInfo(info InputInfo, required []string) string {
	var sb strings.Builder
	sb.WriteString("\n" + accentStyle.Render("▸ INPUT") + "\n")
	field(&sb, "Path", info.Path)
	field(&sb, "Format", strings.ToUpper(info.Format))
	field(&sb, "Size", formatBytes(info.Size))
	field(&sb, "Rows", formatNumber(int64(info.Rows)))
	field(&sb, "Columns", strings.Join(info.Columns, ", "))

	sb.WriteString("\n" + accentStyle.Render("▸ REQUIRED COLUMNS") + "\n")
	for _, col := range required {
		if info.Required[col] {
			fmt.Fprintf(&sb, "  %s %s\n", successStyle.Render("✓"), col)
		} else {
			fmt.Fprintf(&sb, "  %s %s\n", accentStyle.Render("✗"), col)
		}
	}

	sb.WriteString("\n" + mutedStyle.Render(rule) + "\n")
	if info.Problem != nil {
		sb.WriteString(accentStyle.Render("  ✗ INVALID") + "\n")
		fmt.Fprintf(&sb, "  %s\n", info.Problem.Error())
	} else {
		fmt.Fprintf(&sb, "%s %s\n", successStyle.Render("  ✓ VALID"),
			mutedStyle.Render(fmt.Sprintf("(%d events in %d cases)", info.Events, info.Cases)))
	}
	return sb.String()
}

// RenderError renders a fatal error line. With stack set, the capture
// site of a coded error is listed below it.
func RenderError(err error, stack bool) string {
	out := accentStyle.Render("  ✗ ") + err.Error() + "\n"
	var lfe *lferrors.LogFlowError
	if stack && errors.As(err, &lfe) {
		out += mutedStyle.Render(lfe.FormatStack())
	}
	return out
}

// ExportProgress returns a callback that advances a progress bar as
// exporters finish. It returns nil when there is nothing to export.
func ExportProgress(w io.Writer, total int) func(done, total int, name string) {
	if total == 0 {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("  exporting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionClearOnFinish(),
	)
	return func(done, total int, name string) {
		bar.Describe("  exported " + name)
		bar.Set(done)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// Elapsed renders the time a run took.
func Elapsed(res *pipeline.Result) string {
	return fmt.Sprintf("  %s %s\n", mutedStyle.Render("Time:"), titleStyle.Render(formatDuration(res.FinishedAt.Sub(res.StartedAt))))
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
