package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// progressLine redraws one status line on a terminal. On any other writer
// it stays silent and the logger reports progress.
type progressLine struct {
	w     io.Writer
	tty   bool
	total int
	start time.Time
}

func newProgress(w io.Writer) *progressLine {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &progressLine{w: w, tty: tty}
}

func (p *progressLine) Start(total int) {
	p.total = total
	p.start = time.Now()
}

func (p *progressLine) Observe(done int, row types.Row, res types.Result) {
	if !p.tty {
		return
	}
	fmt.Fprint(p.w, "\r\033[K"+formatProgress(done, p.total, time.Since(p.start), row.AbsPath, res.Status))
}

func (p *progressLine) Done() {
	if p.tty {
		fmt.Fprintln(p.w)
	}
}

// formatProgress renders e.g. "[12/40 30%] 2.5/s | 成功 | case3/run.log".
func formatProgress(done, total int, elapsed time.Duration, path, status string) string {
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	rate := 0.0
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(done) / s
	}
	short := filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path))
	return fmt.Sprintf("[%d/%d %.0f%%] %.1f/s | %s | %s", done, total, pct, rate, status, short)
}
