package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"trimsizer/internal/encoding"
)

// barReporter draws session progress as a terminal bar.
type barReporter struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	last int
}

func newBarReporter(w io.Writer) *barReporter {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Preparing"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	return &barReporter{bar: bar}
}

func (b *barReporter) Report(percent int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar.Describe(message)
	if percent > b.last {
		b.last = percent
		_ = b.bar.Set(percent)
	}
}

func (b *barReporter) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Finish()
}

// lineReporter prints one line per update when stdout is not a terminal.
type lineReporter struct {
	w    io.Writer
	last int
}

func (l *lineReporter) Report(percent int, message string) {
	if percent < l.last {
		percent = l.last
	}
	l.last = percent
	fmt.Fprintf(l.w, "[%3d%%] %s\n", percent, message)
}

func (l *lineReporter) Finish() {}

type finishingReporter interface {
	encoding.Reporter
	Finish()
}

func (a *app) reporter() finishingReporter {
	if a.isTerminal() {
		return newBarReporter(a.errOut)
	}
	return &lineReporter{w: a.errOut}
}
