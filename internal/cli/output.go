package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/picklr-io/ocrstack/internal/engine"
	"github.com/picklr-io/ocrstack/internal/ir"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// colorize returns the escape code unless color output is disabled.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// progressPrinter renders reconciliation events as one line per descriptor.
func progressPrinter(w io.Writer) engine.Callback {
	return func(ev engine.Event) {
		switch ev.Status {
		case engine.EventStarted:
			return
		case engine.EventWaiting:
			fmt.Fprintf(w, "%s  … waiting %s for %s to propagate%s\n",
				colorize(colorCyan), ev.Duration, ev.Name, colorize(colorReset))
		case engine.EventSkipped:
			fmt.Fprintf(w, "%s  … settle wait of %s for %s skipped%s\n",
				colorize(colorCyan), ev.Duration, ev.Name, colorize(colorReset))
		case engine.EventFailed:
			fmt.Fprintf(w, "%s  ✗ %s (%s) failed after %s%s\n",
				colorize(colorRed), ev.Name, ev.Kind, round(ev.Duration), colorize(colorReset))
		default:
			symbol, color := statusStyle(ir.Status(ev.Status))
			id := ""
			if ev.Resource != nil && ev.Resource.ID != "" {
				id = " [" + ev.Resource.ID + "]"
			}
			fmt.Fprintf(w, "%s  %s %s (%s) %s%s%s (%s)\n",
				colorize(color), symbol, ev.Name, ev.Kind, ev.Status, id, colorize(colorReset), round(ev.Duration))
		}
	}
}

func statusStyle(s ir.Status) (symbol, color string) {
	switch s {
	case ir.StatusCreated:
		return "+", colorGreen
	case ir.StatusUpdated:
		return "~", colorYellow
	default:
		return "=", colorReset
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(10 * time.Millisecond)
}
