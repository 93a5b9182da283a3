package dashboard

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/postphotos/purrfectcopy/internal/humanize"
)

const plainRefresh = 700 * time.Millisecond

// PlainRenderer prints a single redrawn status line while the run is going
// and the text summary at the end. It is used for --quiet runs and whenever
// stdout is not a terminal, in which case the status line is skipped.
type PlainRenderer struct {
	out      io.Writer
	live     bool
	interval time.Duration

	mu   sync.Mutex
	view View
	stop chan struct{}
	done chan struct{}
}

func NewPlainRenderer(out io.Writer, live bool) *PlainRenderer {
	return &PlainRenderer{
		out:      out,
		live:     live,
		interval: plainRefresh,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *PlainRenderer) Start() {
	if !r.live {
		close(r.done)
		return
	}
	go func() {
		defer close(r.done)
		t := time.NewTicker(r.interval)
		defer t.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-t.C:
				fmt.Fprintf(r.out, "\r\033[2K%s", r.line())
			}
		}
	}()
}

func (r *PlainRenderer) Refresh(v View) {
	r.mu.Lock()
	r.view = v
	r.mu.Unlock()
}

func (r *PlainRenderer) Finish(s Summary) {
	if r.live {
		close(r.stop)
		<-r.done
		fmt.Fprint(r.out, "\r\033[2K")
	}
	fmt.Fprint(r.out, s.Render())
}

func (r *PlainRenderer) line() string {
	r.mu.Lock()
	v := r.view
	r.mu.Unlock()
	return statusLine(v)
}

func statusLine(v View) string {
	s := v.Snapshot
	parts := []string{fmt.Sprintf("%3d%%", s.Progress)}
	if v.DryRun {
		parts = append(parts, "dry-run")
	}
	if s.Speed != "" {
		parts = append(parts, s.Speed)
	}
	if s.Transferred != "" {
		parts = append(parts, s.Transferred)
	}
	parts = append(parts, fmt.Sprintf("files %d", s.FilesMoved))
	if secs, ok := s.Elapsed(v.Now); ok {
		parts = append(parts, humanize.Duration(secs))
	}
	if s.CurrentFile != "" {
		parts = append(parts, "| "+truncateRunes(s.CurrentFile, 60))
	}
	return strings.Join(parts, "  ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
