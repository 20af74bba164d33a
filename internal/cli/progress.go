package cli

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/eshaffer321/shopify-compta/internal/application/export"
)

// ProgressBar shows page fetching on a terminal.
type ProgressBar struct {
	w    io.Writer
	bar  *progressbar.ProgressBar
	done bool
}

// NewProgressBar creates a progress bar writing to w.
func NewProgressBar(w io.Writer) *ProgressBar {
	return &ProgressBar{w: w}
}

// OnProgress implements export.Progress.
func (p *ProgressBar) OnProgress(e export.ProgressEvent) {
	switch e.Stage {
	case export.StageFetching, export.StageDeferred:
		if p.bar == nil {
			if e.PagesTotal == 0 {
				return
			}
			p.bar = progressbar.NewOptions(e.PagesTotal,
				progressbar.OptionSetWriter(p.w),
				progressbar.OptionSetDescription("fetching pages"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(false),
				progressbar.OptionSetWidth(30),
			)
		}
		if e.Stage == export.StageDeferred {
			p.bar.Describe("retrying deferred pages")
		}
		_ = p.bar.Set(e.PagesDone)
	case export.StageDeriving, export.StageWriting, export.StageCompleted:
		p.finish()
	}
}

func (p *ProgressBar) finish() {
	if p.bar == nil || p.done {
		return
	}
	p.done = true
	// leave the bar short of full when pages were dropped
	_ = p.bar.Exit()
	_, _ = io.WriteString(p.w, "\n")
}
