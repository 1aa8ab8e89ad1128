package encoding

// Reporter receives progress updates. Calls are fire-and-forget and must
// not block for long.
type Reporter interface {
	Report(percent int, message string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(percent int, message string)

// Report calls f.
func (f ReporterFunc) Report(percent int, message string) {
	f(percent, message)
}

// Discard drops every update.
var Discard Reporter = ReporterFunc(func(int, string) {})

// Progress milestones.
const (
	progressPrepare     = 0
	progressInputCopied = 5
	progressSearchStart = 10
	progressSearchSpan  = 70
	progressCBR         = 45
	progressLongGIF     = 50
	progressPalette     = 55
	progressPaletteUse  = 75
	progressFallback    = 85
	progressFinalizing  = 95
	progressComplete    = 100
)

func report(r Reporter, percent int, message string) {
	if r == nil {
		return
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	r.Report(percent, message)
}
