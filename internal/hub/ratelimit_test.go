package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateWindowEnforcesLimit(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := rateWindow{limit: 3, window: time.Minute, windowStart: base}

	assert.True(t, w.allow(base))
	assert.True(t, w.allow(base.Add(time.Second)))
	assert.True(t, w.allow(base.Add(2*time.Second)))
	assert.False(t, w.allow(base.Add(3*time.Second)))
	assert.False(t, w.allow(base.Add(30*time.Second)))
}

func TestRateWindowResetsAfterWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := rateWindow{limit: 2, window: time.Minute, windowStart: base}

	assert.True(t, w.allow(base))
	assert.True(t, w.allow(base))
	assert.False(t, w.allow(base))

	// Exactly one window elapsed does not reset yet.
	assert.False(t, w.allow(base.Add(time.Minute)))

	// Past the window the counter resets and the window advances.
	later := base.Add(time.Minute + time.Millisecond)
	assert.True(t, w.allow(later))
	assert.True(t, w.allow(later))
	assert.False(t, w.allow(later))
}
