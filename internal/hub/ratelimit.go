package hub

import "time"

// rateWindow is a fixed counter with a rolling window-start timestamp. It is
// deliberately not a timestamp list: memory use is constant under sustained
// load while the accept/reject decisions match a single-window counter.
// Callers must serialise access (the owning connection's mutex).
type rateWindow struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
}

// allow counts the current request and reports whether it is within the
// limit. When more than one window has elapsed since windowStart, the counter
// resets and the window advances to now before counting.
func (w *rateWindow) allow(now time.Time) bool {
	if now.Sub(w.windowStart) > w.window {
		w.count = 0
		w.windowStart = now
	}
	if w.count >= w.limit {
		return false
	}
	w.count++
	return true
}
