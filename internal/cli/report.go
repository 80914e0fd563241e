package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/guiyumin/vscribe/internal/core/batch"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	pathStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))  // cyan
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	okMark   = color.New(color.FgGreen, color.Bold).Sprint("✓")
	warnMark = color.New(color.FgYellow, color.Bold).Sprint("!")
	failMark = color.New(color.FgRed, color.Bold).Sprint("✗")
)

// renderReport formats a run report for the terminal.
func renderReport(r *batch.Report) string {
	var b strings.Builder

	switch {
	case r.State != batch.StateDone:
		fmt.Fprintf(&b, "\n  %s %s\n", failMark, headerStyle.Render("Transcription failed"))
	case r.Degraded():
		fmt.Fprintf(&b, "\n  %s %s\n", warnMark, headerStyle.Render("Transcription finished with gaps"))
	default:
		fmt.Fprintf(&b, "\n  %s %s\n", okMark, headerStyle.Render("Transcription complete"))
	}

	row := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
	}
	row("Run", r.RunID)
	if r.Size > 1 || r.Rank > 0 {
		row("Rank", fmt.Sprintf("%d of %d", r.Rank, r.Size))
	}
	row("Input", r.Input)
	if r.Output != "" {
		row("Transcript", pathStyle.Render(r.Output))
	}
	row("Segments", fmt.Sprintf("%d transcribed of %d", r.Transcribed, r.Segments))
	row("Elapsed", formatElapsed(r.Elapsed))

	if len(r.Workers) > 1 {
		fmt.Fprintf(&b, "\n  %s\n", headerStyle.Render("Workers"))
		for _, w := range r.Workers {
			fmt.Fprintf(&b, "    %-3d %3d segments  %3d failed  %s\n", w.WorkerID, w.Segments, w.Failed, formatElapsed(w.Elapsed))
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, "\n  %s\n", headerStyle.Render("Failed segments"))
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "    %s %d: %v\n", failMark, f.Index, f.Err)
		}
	}
	if len(r.WorkerFailures) > 0 {
		fmt.Fprintf(&b, "\n  %s\n", headerStyle.Render("Workers that did not start"))
		for _, w := range r.WorkerFailures {
			fmt.Fprintf(&b, "    %s %d: %v\n", failMark, w.WorkerID, w.Err)
		}
	}
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", "Missing:")), joinInts(r.Missing))
	}

	if len(r.CleanupErrors) > 0 {
		fmt.Fprintf(&b, "\n  %s\n", headerStyle.Render("Cleanup problems"))
		for _, err := range r.CleanupErrors {
			fmt.Fprintf(&b, "    %s %v\n", warnMark, err)
		}
	}
	if len(r.Preserved) > 0 {
		fmt.Fprintf(&b, "\n  %s\n", hintStyle.Render(fmt.Sprintf("%d temporary files were kept:", len(r.Preserved))))
		for _, p := range r.Preserved {
			fmt.Fprintf(&b, "    %s\n", p)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// exitCode maps the outcome of a run to the process status.
func exitCode(r *batch.Report, err error, strict bool) int {
	if err != nil || r == nil || r.AllWorkersFailed() {
		return exitFatal
	}
	if strict && r.Degraded() {
		return exitDegraded
	}
	return exitOK
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
