package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"vodsearch/internal/status"
)

const barWidth = 30

// ProgressRenderer prints an indexing job's progress to a terminal. On a
// TTY it redraws one line in place; otherwise it prints a line per
// update so logs stay readable.
type ProgressRenderer struct {
	out    io.Writer
	styles Styles
	tty    bool
}

// NewProgressRenderer detects the output's capabilities and picks plain
// or colored rendering.
func NewProgressRenderer(out io.Writer) *ProgressRenderer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ProgressRenderer{
		out:    out,
		styles: GetStyles(!tty),
		tty:    tty,
	}
}

// Render prints the current state of a job.
func (r *ProgressRenderer) Render(job *status.Job) {
	line := r.line(job)
	if r.tty {
		_, _ = fmt.Fprintf(r.out, "\r\033[K%s", line)
		if job.Terminal() {
			_, _ = fmt.Fprintln(r.out)
		}
		return
	}
	_, _ = fmt.Fprintln(r.out, line)
}

func (r *ProgressRenderer) line(job *status.Job) string {
	switch job.State {
	case status.StateCompleted:
		return r.styles.Success.Render(fmt.Sprintf(
			"done: %d indexed (%d new, %d skipped) of %d",
			job.IndexedItems, job.NewItems, job.Skipped, job.Total))
	case status.StateFailed:
		return r.styles.Error.Render("failed: " + job.Error)
	case status.StateCancelled:
		return r.styles.Warning.Render("cancelled")
	}

	if job.Total == 0 {
		return r.styles.Label.Render("enumerating collection...")
	}

	pct := float64(job.Progress) / float64(job.Total)
	filled := int(pct * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	return fmt.Sprintf("%s %s %s",
		r.styles.Progress.Render(bar),
		r.styles.Header.Render(fmt.Sprintf("%3.0f%%", pct*100)),
		r.styles.Label.Render(fmt.Sprintf("%d/%d (skipped %d)", job.Progress, job.Total, job.Skipped)))
}
