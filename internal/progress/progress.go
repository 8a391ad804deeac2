// Package progress draws a per-batch progress bar. A nil *Bar is valid and
// does nothing, so callers without a terminal just pass a nil writer.
package progress

import (
	"io"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

type Bar struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

// New returns nil when w is nil.
func New(w io.Writer, name string, total int) *Bar {
	if w == nil || total <= 0 {
		return nil
	}
	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(60), mpb.WithAutoRefresh())
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name+" ", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
		),
	)
	return &Bar{p: p, bar: bar}
}

// Increment marks one unit finished. Safe for concurrent use.
func (b *Bar) Increment() {
	if b == nil {
		return
	}
	b.bar.Increment()
}

// Finish completes the bar at its current count and waits for the last render.
func (b *Bar) Finish() {
	if b == nil {
		return
	}
	b.bar.SetTotal(-1, true)
	b.p.Wait()
}
