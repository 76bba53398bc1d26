package ue

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI color codes for terminal output
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Bold   = "\033[1m"
)

// ProgressRenderer draws a batch's progress as a single refreshed line.
type ProgressRenderer struct {
	tracker     *BatchTracker
	out         io.Writer
	stopChan    chan struct{}
	doneChan    chan struct{}
	refreshRate time.Duration
	useColors   bool
	width       int
}

func NewProgressRenderer(tracker *BatchTracker, out io.Writer, useColors bool) *ProgressRenderer {
	return &ProgressRenderer{
		tracker:     tracker,
		out:         out,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
		refreshRate: 200 * time.Millisecond,
		useColors:   useColors,
		width:       40, // Progress bar width
	}
}

// Start begins the render loop
func (pr *ProgressRenderer) Start() {
	defer close(pr.doneChan)
	pr.Render()

	ticker := time.NewTicker(pr.refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pr.Render()
		case <-pr.stopChan:
			return
		}
	}
}

// StopAndWait stops the render loop and prints the final summary.
func (pr *ProgressRenderer) StopAndWait() {
	close(pr.stopChan)
	<-pr.doneChan
	pr.RenderFinal()
}

func (pr *ProgressRenderer) bar() (string, int) {
	accepted, rejected, failed, _ := pr.tracker.Counts()
	done := accepted + rejected + failed
	filled := 0
	if pr.tracker.Total > 0 {
		filled = pr.width * done / pr.tracker.Total
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", pr.width-filled), done
}

// Render renders the current progress to the terminal
func (pr *ProgressRenderer) Render() {
	accepted, rejected, failed, running := pr.tracker.Counts()
	bar, done := pr.bar()

	var line string
	if pr.useColors {
		line = fmt.Sprintf("\r%s[%s]%s [%s] %d/%d | %s%d good%s %s%d bad%s | %d in flight",
			Cyan, pr.tracker.Addr, Reset,
			Green+bar+Reset, done, pr.tracker.Total,
			Green, accepted, Reset, Yellow, rejected, Reset, running)
	} else {
		line = fmt.Sprintf("\r[%s] [%s] %d/%d | %d good %d bad | %d in flight",
			pr.tracker.Addr, bar, done, pr.tracker.Total, accepted, rejected, running)
	}
	if failed > 0 {
		if pr.useColors {
			line += Red + fmt.Sprintf(" | %d failed", failed) + Reset
		} else {
			line += fmt.Sprintf(" | %d failed", failed)
		}
	}
	fmt.Fprint(pr.out, line)
}

// RenderFinal renders the summary once the batch is over.
func (pr *ProgressRenderer) RenderFinal() {
	accepted, rejected, failed, _ := pr.tracker.Counts()
	elapsed := formatDuration(pr.tracker.GetElapsedTime())

	// Clear the previous line completely
	fmt.Fprint(pr.out, "\r\033[K")

	icon := AttachAccepted.Icon()
	if failed > 0 {
		icon = AttachFailed.Icon()
	}
	if pr.useColors {
		color := Green
		if failed > 0 {
			color = Red
		}
		fmt.Fprintf(pr.out, "%s[%s]%s %s%s%s %d attaches: %d good, %d bad, %s%d failed%s | %s\n",
			Cyan, pr.tracker.Addr, Reset, color+Bold, icon, Reset,
			pr.tracker.Total, accepted, rejected, color, failed, Reset, elapsed)
		return
	}
	fmt.Fprintf(pr.out, "[%s] %s %d attaches: %d good, %d bad, %d failed | %s\n",
		pr.tracker.Addr, icon, pr.tracker.Total, accepted, rejected, failed, elapsed)
}

// formatDuration formats a duration into a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := d / time.Minute
	secs := (d % time.Minute) / time.Second
	return fmt.Sprintf("%dm%ds", mins, secs)
}

// IsTerminalSupported reports whether stdout is a terminal that can take
// ANSI codes.
func IsTerminalSupported() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
