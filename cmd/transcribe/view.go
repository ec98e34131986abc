package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/labstack/gommon/color"

	"whisper-transcriber/internal/progress"
)

const barWidth = 30

// terminalView draws a single-line progress bar and prints one line per
// finished file.
type terminalView struct {
	out       io.Writer
	cl        *color.Color
	lastShown float64
	completed int
	drawn     bool
}

func newTerminalView(out io.Writer, colored bool) *terminalView {
	cl := color.New()
	cl.SetOutput(out)
	if !colored {
		cl.Disable()
	}
	return &terminalView{out: out, cl: cl, lastShown: -1}
}

func (v *terminalView) Render(s progress.Snapshot) {
	for _, c := range s.Completed[v.completed:] {
		v.clearLine()
		fmt.Fprintf(v.out, "%s %s -> %s\n", v.cl.Green("done"), c.InputName, c.OutputPath)
		v.completed++
		v.lastShown = -1
	}

	pct := math.Floor(s.Percent*10) / 10
	if pct != v.lastShown {
		v.drawBar(s, pct)
	}

	if s.Finished {
		v.clearLine()
		if s.Error != "" {
			fmt.Fprintf(v.out, "%s %s\n", v.cl.Red("error"), s.Error)
			return
		}
		fmt.Fprintf(v.out, "%s %d file(s) transcribed\n", v.cl.Bold(v.cl.Green("finished")), s.FilesDone)
	}
}

func (v *terminalView) drawBar(s progress.Snapshot, pct float64) {
	filled := int(pct / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	file := s.FileIndex + 1
	if file > s.FilesTotal {
		file = s.FilesTotal
	}
	fmt.Fprintf(v.out, "\r[%s] %5.1f%%  file %d/%d", v.cl.Cyan(bar), pct, file, s.FilesTotal)
	v.lastShown = pct
	v.drawn = true
}

func (v *terminalView) clearLine() {
	if v.drawn {
		fmt.Fprint(v.out, "\r\033[K")
		v.drawn = false
	}
}
