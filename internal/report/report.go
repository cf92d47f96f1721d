// internal/report/report.go
// Package report renders metrics snapshots, history comparisons and analysis
// results for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/mwiater/parachat/internal/metrics"
	"github.com/mwiater/parachat/internal/textproc"
	"github.com/mwiater/parachat/internal/util"
)

var (
	successfulResult = color.New(color.FgGreen).SprintFunc()
	failedResult     = color.New(color.FgRed).SprintFunc()

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	loadedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Status prints a green OK or red FAIL line.
func Status(w io.Writer, ok bool, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if ok {
		fmt.Fprintf(w, "%s %s\n", successfulResult("[OK]"), msg)
		return
	}
	fmt.Fprintf(w, "%s %s\n", failedResult("[FAIL]"), msg)
}

// Metrics prints one snapshot as an aligned key/value block.
func Metrics(w io.Writer, pm metrics.PerformanceMetrics) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Performance (%s, %s)", pm.ModelName(), pm.ExecutionMode())))

	rows := [][2]string{
		{"Total response time", formatDuration(pm.TotalResponseTime())},
		{"First token latency", optionalDuration(pm.FirstTokenLatency())},
		{"Avg token latency", optionalDuration(pm.AverageTokenLatency())},
		{"Tokens (est.)", fmt.Sprintf("%d", pm.TokenCount())},
		{"Tokens/s", fmt.Sprintf("%.2f", pm.TokensPerSecond())},
		{"CPU peak / avg", fmt.Sprintf("%.1f%% / %.1f%%", pm.PeakCPUUsage(), pm.AverageCPUUsage())},
		{"Memory peak / avg", fmt.Sprintf("%s / %s", FormatBytes(pm.PeakMemoryUsage()), FormatBytes(pm.AverageMemoryUsage()))},
		{"Samples", fmt.Sprintf("%d", pm.SampleCount())},
		{"Errors", fmt.Sprintf("%d", pm.ErrorCount())},
		{"Success rate", fmt.Sprintf("%.0f%%", pm.SuccessRate()*100)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-20s", r[0]+":")), r[1])
	}
}

// Comparison prints a table of history entries and the per-model speedup of
// parallel over sequential mean response time.
func Comparison(w io.Writer, h *metrics.History) {
	entries := h.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Model", "Mode", "Runs", "Failed", "Mean ms", "Stddev ms", "Min ms", "Max ms", "Tok/s", "Peak CPU %", "Peak MB").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	models := map[string]bool{}
	for _, e := range entries {
		s := e.Stats
		t.Row(
			util.TruncateRunes(e.ModelName, 28),
			e.Mode.String(),
			fmt.Sprintf("%d", s.TotalSessions),
			fmt.Sprintf("%d", s.FailedSessions),
			fmt.Sprintf("%.1f", s.ResponseTimeMillis.Mean),
			fmt.Sprintf("%.1f", s.ResponseTimeMillis.StdDev()),
			fmt.Sprintf("%.1f", s.ResponseTimeMillis.Min),
			fmt.Sprintf("%.1f", s.ResponseTimeMillis.Max),
			fmt.Sprintf("%.2f", s.TokensPerSecond.Mean),
			fmt.Sprintf("%.1f", s.PeakCPUPercent.Max),
			fmt.Sprintf("%.1f", s.PeakMemoryMB.Max),
		)
		models[e.ModelName] = true
	}
	fmt.Fprintln(w, t.Render())

	names := make([]string, 0, len(models))
	for m := range models {
		names = append(names, m)
	}
	sort.Strings(names)
	for _, m := range names {
		if speedup, ok := h.Speedup(m); ok {
			fmt.Fprintf(w, "%s parallel/sequential speedup: %.2fx\n", m, speedup)
		}
	}
}

// Analysis prints an orchestrator report with fan-out timing.
func Analysis(w io.Writer, r textproc.Report, chunkDelay time.Duration) {
	if r.ProcessedText != "" {
		fmt.Fprintln(w, util.WrapToWidth(r.ProcessedText, 100))
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, r.Summary())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Workers:"), r.Parallelism)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Elapsed:"), formatDuration(r.Elapsed))
	if chunkDelay > 0 && r.ChunkCount > 0 {
		serial := time.Duration(r.ChunkCount) * chunkDelay
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Sequential delay sum:"), formatDuration(serial))
	}
}

// HostModels prints one host's models, marking loaded and recommended ones.
func HostModels(w io.Writer, host string, available, loaded, recommended []string) {
	fmt.Fprintln(w, titleStyle.Render(host+":"))
	loadedSet := toSet(loaded)
	recommendedSet := toSet(recommended)
	if len(available) == 0 {
		fmt.Fprintln(w, "  (no models)")
	}
	for _, m := range available {
		var tags []string
		if loadedSet[m] {
			tags = append(tags, "LOADED")
		}
		if recommendedSet[m] {
			tags = append(tags, "RECOMMENDED")
		}
		line := "  - " + m
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		if loadedSet[m] {
			fmt.Fprintln(w, loadedStyle.Render(line))
		} else {
			fmt.Fprintln(w, labelStyle.Render(line))
		}
	}
}

// Recommended prints the static recommended model list.
func Recommended(w io.Writer, models []string) {
	fmt.Fprintln(w, titleStyle.Render("Recommended models:"))
	for _, m := range models {
		fmt.Fprintf(w, "  - %s\n", m)
	}
}

// FormatBytes renders n using binary units.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1f ms", float64(d)/float64(time.Millisecond))
}

func optionalDuration(d time.Duration, ok bool) string {
	if !ok {
		return "n/a"
	}
	return formatDuration(d)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}
