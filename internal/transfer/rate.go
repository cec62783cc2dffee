package transfer

import (
	"sync"
	"time"
)

// rateSampler turns cumulative byte counters into per-second rates
// measured between consecutive samples.
type rateSampler struct {
	mu       sync.Mutex
	lastAt   time.Time
	lastDown int64
	lastUp   int64
	down     float64
	up       float64
}

// minSampleGap keeps rapid polling from producing noisy rates
const minSampleGap = 250 * time.Millisecond

func (r *rateSampler) sample(now time.Time, down, up int64) (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastAt.IsZero() {
		r.lastAt, r.lastDown, r.lastUp = now, down, up
		return 0, 0
	}

	elapsed := now.Sub(r.lastAt)
	if elapsed < minSampleGap {
		return r.down, r.up
	}

	secs := elapsed.Seconds()
	r.down = float64(max(down-r.lastDown, 0)) / secs
	r.up = float64(max(up-r.lastUp, 0)) / secs
	r.lastAt, r.lastDown, r.lastUp = now, down, up
	return r.down, r.up
}
