package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"ndjsonconv/internal/convert"
	"ndjsonconv/internal/logging"
)

const maxItemWidth = 40

// progressRenderer draws conversion progress on a single redrawn line when
// attached to a terminal and as sampled log lines otherwise.
type progressRenderer struct {
	out       io.Writer
	inline    bool
	sampler   *logging.ProgressSampler
	lastWidth int
	drawn     bool
}

func newProgressRenderer(out io.Writer, inline bool) *progressRenderer {
	return &progressRenderer{
		out:     out,
		inline:  inline,
		sampler: logging.NewProgressSampler(10),
	}
}

func (r *progressRenderer) render(ev convert.ProgressEvent) {
	line := formatProgress(ev)
	if !r.inline {
		if r.sampler.ShouldLog(string(ev.Phase), ev.Current, ev.Total) {
			fmt.Fprintln(r.out, line)
		}
		return
	}
	width := text.StringWidthWithoutEscSequences(line)
	pad := ""
	if r.lastWidth > width {
		pad = strings.Repeat(" ", r.lastWidth-width)
	}
	fmt.Fprintf(r.out, "\r%s%s", line, pad)
	r.lastWidth = width
	r.drawn = true
}

// finish terminates an inline progress line.
func (r *progressRenderer) finish() {
	if r.inline && r.drawn {
		fmt.Fprintln(r.out)
		r.drawn = false
	}
}

func formatProgress(ev convert.ProgressEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-11s %d/%d", ev.Phase, ev.Current, ev.Total)
	if ev.Total > 0 {
		fmt.Fprintf(&b, " (%3.0f%%)", float64(ev.Current)/float64(ev.Total)*100)
	}
	if ev.Item != nil && *ev.Item != "" {
		b.WriteByte(' ')
		b.WriteString(text.Trim(*ev.Item, maxItemWidth))
	}
	return b.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
