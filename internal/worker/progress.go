package worker

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress accumulates rendered pixels and per-mode failures from pool
// results and renders them as a single status line.
type Progress struct {
	mu       sync.Mutex
	output   io.Writer
	now      func() time.Time
	started  time.Time
	enabled  bool
	total    int
	done     int
	pixels   int64
	failures map[string]int
}

// NewProgress creates a tracker for total tasks. When enabled, every
// result redraws the status line on stderr.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		output:   os.Stderr,
		now:      time.Now,
		started:  time.Now(),
		enabled:  enabled,
		total:    total,
		failures: make(map[string]int),
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Record
}

// Record folds one finished result into the totals.
func (p *Progress) Record(r Result, completed, total, _ int) {
	p.mu.Lock()
	p.done = completed
	p.total = total
	if r.Err != nil {
		p.failures[string(r.Task.Request.Mode)]++
	} else {
		p.pixels += int64(r.Task.Request.Width) * int64(r.Task.Request.Height)
	}
	line := p.lineLocked()
	p.mu.Unlock()

	if p.enabled {
		fmt.Fprint(p.output, "\r"+line)
	}
}

// Done redraws the final line and ends it.
func (p *Progress) Done() {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	line := p.lineLocked()
	p.mu.Unlock()
	fmt.Fprintln(p.output, "\r"+line)
}

// Pixels returns the number of pixels rendered by successful tasks.
func (p *Progress) Pixels() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pixels
}

// Failures returns the failure count per texture mode.
func (p *Progress) Failures() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.failures))
	for k, v := range p.failures {
		out[k] = v
	}
	return out
}

// Summary describes the finished run, e.g.
// "Rendered 8/10 textures, 2.6 MP in 4s (0.7 MP/s); failed: noise=1 voronoi=1".
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.started)
	s := fmt.Sprintf("Rendered %d/%d textures, %s in %s (%s/s)",
		p.done-p.failedLocked(), p.total, megapixels(p.pixels), formatDuration(elapsed), megapixels(rate(p.pixels, elapsed)))
	if f := p.failureListLocked(); f != "" {
		s += "; failed: " + f
	}
	return s
}

func (p *Progress) lineLocked() string {
	elapsed := p.now().Sub(p.started)

	filled := 0
	if p.total > 0 {
		filled = min(barWidth, p.done*barWidth/p.total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s%s] %d/%d textures | %s | %s/s",
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled),
		p.done, p.total, megapixels(p.pixels), megapixels(rate(p.pixels, elapsed)))
	if n := p.failedLocked(); n > 0 {
		fmt.Fprintf(&b, " | %d failed", n)
	}
	switch {
	case p.done >= p.total:
		fmt.Fprintf(&b, " | done in %s", formatDuration(elapsed))
	case p.done > 0:
		left := time.Duration(float64(elapsed) / float64(p.done) * float64(p.total-p.done))
		fmt.Fprintf(&b, " | ETA %s", formatDuration(left))
	}
	// clear leftovers from a longer previous line
	b.WriteString("    ")
	return b.String()
}

func (p *Progress) failedLocked() int {
	n := 0
	for _, v := range p.failures {
		n += v
	}
	return n
}

func (p *Progress) failureListLocked() string {
	modes := make([]string, 0, len(p.failures))
	for m := range p.failures {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = fmt.Sprintf("%s=%d", m, p.failures[m])
	}
	return strings.Join(parts, " ")
}

func rate(pixels int64, elapsed time.Duration) int64 {
	if elapsed <= 0 {
		return 0
	}
	return int64(float64(pixels) / elapsed.Seconds())
}

// megapixels formats a pixel count as "1.3 MP".
func megapixels(n int64) string {
	return fmt.Sprintf("%.1f MP", float64(n)/1e6)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
