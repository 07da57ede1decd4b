package export

import (
	"sync"
	"time"
)

// EstimatingETA is the ETA value reported while no ratio is known yet.
const EstimatingETA = -1

// Tracker converts raw engine progress reports into a clamped ratio and a
// wall-clock ETA.
type Tracker struct {
	mu    sync.Mutex
	start time.Time
	ratio float64
	now   func() time.Time // test hook
}

// NewTracker starts tracking from now.
func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.start = t.now()
	return t
}

// Update records an engine-reported ratio and returns the clamped ratio
// plus the ETA in seconds. A ratio of 0 yields EstimatingETA, never a
// nonsensical value; the ETA is never negative.
func (t *Tracker) Update(ratio float64) (float64, float64) {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ratio > t.ratio {
		t.ratio = ratio
	}
	if t.ratio == 0 {
		return 0, EstimatingETA
	}

	elapsed := t.now().Sub(t.start).Seconds()
	eta := elapsed/t.ratio - elapsed
	if eta < 0 {
		eta = 0
	}
	return t.ratio, eta
}

// Ratio returns the last clamped ratio.
func (t *Tracker) Ratio() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ratio
}
