package monitoring

import "sync"

// Progress reports monotonically increasing completion counts for a batch
// of work units. Ticks may arrive from many goroutines; reported counts
// never go backwards even when completions race. Rendering goes through
// Logf so it can be muted alongside the rest of the diagnostics.
type Progress struct {
	mu      sync.Mutex
	total   int
	done    int
	lastPct int
	label   string
	enabled bool
}

// NewProgress returns a reporter for total units. When enabled is false
// every Tick is a no-op, which keeps call sites unconditional.
func NewProgress(label string, total int, enabled bool) *Progress {
	return &Progress{label: label, total: total, lastPct: -1, enabled: enabled}
}

// Tick records one completed unit and logs whenever the integer
// percentage advances. Completion order may differ from submission
// order; the count only ever moves forward.
func (p *Progress) Tick() {
	if p == nil || !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done >= p.total {
		return
	}
	p.done++
	pct := 100 * p.done / p.total
	if pct > p.lastPct {
		p.lastPct = pct
		Logf("%s: %d/%d (%d%%)", p.label, p.done, p.total, pct)
	}
}

// Done returns the number of units completed so far.
func (p *Progress) Done() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
