// Package editor implements the non-destructive trim model over a recorded
// clip: a sorted list of kept segments within [0, duration], mutated by
// split/delete/remove-interval operations with bounded undo. Operations that
// would produce an invalid state are silently rejected; they are routine
// interaction edge cases, not errors.
package editor

import (
	"math"
	"sort"
	"sync"
)

// Segment is one kept time interval, in seconds, half-open [Start, End).
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns the segment duration in seconds.
func (s Segment) Length() float64 { return s.End - s.Start }

// Policy holds the tunable edit thresholds. The exact values are not
// load-bearing beyond "small and positive"; they exist to keep degenerate
// slivers and floating-point dust out of the segment list.
type Policy struct {
	// MinGap is the minimum distance a split point must keep from either
	// end of the segment being split.
	MinGap float64 `json:"min_gap" toml:"min_gap"`

	// MinKeep is the minimum length a fragment produced by RemoveInterval
	// must have to survive.
	MinKeep float64 `json:"min_keep" toml:"min_keep"`

	// MergeEpsilon absorbs floating-point rounding: segments closer than
	// this merge when the list is re-derived.
	MergeEpsilon float64 `json:"merge_epsilon" toml:"merge_epsilon"`

	// HistoryDepth bounds the undo stack.
	HistoryDepth int `json:"history_depth" toml:"history_depth"`
}

// DefaultPolicy returns the standard edit thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinGap:       0.5,
		MinKeep:      0.1,
		MergeEpsilon: 0.001,
		HistoryDepth: 20,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MinGap <= 0 {
		p.MinGap = def.MinGap
	}
	if p.MinKeep <= 0 {
		p.MinKeep = def.MinKeep
	}
	if p.MergeEpsilon <= 0 {
		p.MergeEpsilon = def.MergeEpsilon
	}
	if p.HistoryDepth <= 0 {
		p.HistoryDepth = def.HistoryDepth
	}
	return p
}

// snapshot is one undo stack entry.
type snapshot struct {
	segments []Segment
	selected int
}

// Editor is the single-writer trim state machine. Consumers read snapshots
// via Segments; only Editor methods mutate the list.
type Editor struct {
	mu       sync.Mutex
	policy   Policy
	duration float64
	segments []Segment
	selected int
	history  []snapshot
	touched  bool
}

// New creates an editor holding the single full-duration segment.
func New(duration float64, policy Policy) *Editor {
	if duration < 0 {
		duration = 0
	}
	return &Editor{
		policy:   policy.withDefaults(),
		duration: duration,
		segments: []Segment{{Start: 0, End: duration}},
	}
}

// Policy returns the active edit thresholds.
func (e *Editor) Policy() Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// SetPolicy swaps the edit thresholds; live edits keep their history.
func (e *Editor) SetPolicy(p Policy) {
	e.mu.Lock()
	e.policy = p.withDefaults()
	e.mu.Unlock()
}

// Duration returns the clip duration in seconds.
func (e *Editor) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// Segments returns a snapshot copy of the kept segments.
func (e *Editor) Segments() []Segment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Segment, len(e.segments))
	copy(out, e.segments)
	return out
}

// Selected returns the index of the selected segment.
func (e *Editor) Selected() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Select moves the selection, clamped into range.
func (e *Editor) Select(i int) {
	e.mu.Lock()
	e.selected = clampIndex(i, len(e.segments))
	e.mu.Unlock()
}

// Split cuts the selected segment at the given time and selects the second
// half. Rejected when the split point sits within MinGap of either end of
// the selected segment. Reports whether the split was applied.
func (e *Editor) Split(at float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	sel := e.segments[e.selected]
	if at < sel.Start+e.policy.MinGap || at > sel.End-e.policy.MinGap {
		return false
	}

	e.pushHistory()
	tail := append([]Segment{}, e.segments[e.selected+1:]...)
	e.segments = append(e.segments[:e.selected],
		Segment{Start: sel.Start, End: at},
		Segment{Start: at, End: sel.End})
	e.segments = append(e.segments, tail...)
	// Splitting is most often followed by deleting the later part, so the
	// second half becomes the selection.
	e.selected++
	e.touched = true
	return true
}

// DeleteSelected removes the selected segment and selects the previous one.
// With one segment left it resets to the full-duration segment instead of
// producing an empty, unrenderable list.
func (e *Editor) DeleteSelected() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pushHistory()
	if len(e.segments) == 1 {
		e.segments = []Segment{{Start: 0, End: e.duration}}
		e.selected = 0
	} else {
		e.segments = append(e.segments[:e.selected], e.segments[e.selected+1:]...)
		if e.selected > 0 {
			e.selected--
		}
	}
	e.touched = true
}

// RemoveInterval subtracts [start, end) from every segment, dropping cut
// fragments shorter than MinKeep and merging survivors within MergeEpsilon.
// A no-op (reported as false) when the interval overlaps nothing or when
// removal would leave no segments at all.
func (e *Editor) RemoveInterval(start, end float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if end <= start {
		return false
	}

	overlaps := false
	for _, seg := range e.segments {
		if start < seg.End && end > seg.Start {
			overlaps = true
			break
		}
	}
	if !overlaps {
		return false
	}

	var result []Segment
	for _, seg := range e.segments {
		if start >= seg.End || end <= seg.Start {
			result = append(result, seg)
			continue
		}
		// Cut fragments must clear MinKeep to survive.
		if left := (Segment{Start: seg.Start, End: math.Min(start, seg.End)}); left.Length() >= e.policy.MinKeep {
			result = append(result, left)
		}
		if right := (Segment{Start: math.Max(end, seg.Start), End: seg.End}); right.Length() >= e.policy.MinKeep {
			result = append(result, right)
		}
	}
	if len(result) == 0 {
		return false
	}

	e.pushHistory()
	e.segments = mergeSorted(result, e.policy.MergeEpsilon)
	e.selected = clampIndex(e.selected, len(e.segments))
	e.touched = true
	return true
}

// UpdateSelectedSegment moves the selected segment's boundaries. Bounds are
// clamped into the gap between neighbors and the clip range; rejected when
// the clamped segment would be shorter than MinKeep.
func (e *Editor) UpdateSelectedSegment(start, end float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	lo, hi := 0.0, e.duration
	if e.selected > 0 {
		lo = e.segments[e.selected-1].End
	}
	if e.selected < len(e.segments)-1 {
		hi = e.segments[e.selected+1].Start
	}
	start = math.Max(start, lo)
	end = math.Min(end, hi)
	if end-start < e.policy.MinKeep {
		return false
	}
	if e.segments[e.selected] == (Segment{Start: start, End: end}) {
		return false
	}

	e.pushHistory()
	e.segments[e.selected] = Segment{Start: start, End: end}
	e.touched = true
	return true
}

// Undo restores the most recent pre-mutation snapshot. Reports false when
// the history is empty.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.history) == 0 {
		return false
	}
	snap := e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]
	e.segments = snap.segments
	e.selected = clampIndex(snap.selected, len(e.segments))
	return true
}

// SyncDurationIfUntouched reconciles an estimated duration with a more
// accurate one discovered later. Applies only while the editor still holds
// the single untouched full segment, so real edits are never discarded.
func (e *Editor) SyncDurationIfUntouched(actual float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.touched || actual <= 0 {
		return false
	}
	if len(e.segments) != 1 || e.segments[0].Start != 0 {
		return false
	}
	if math.Abs(actual-e.segments[0].End) <= e.policy.MergeEpsilon {
		return false
	}
	e.duration = actual
	e.segments[0].End = actual
	return true
}

// pushHistory snapshots the current state. Happens before the mutation it
// protects so Undo always restores the exact pre-mutation list.
func (e *Editor) pushHistory() {
	segs := make([]Segment, len(e.segments))
	copy(segs, e.segments)
	e.history = append(e.history, snapshot{segments: segs, selected: e.selected})
	if len(e.history) > e.policy.HistoryDepth {
		e.history = e.history[1:]
	}
}

// mergeSorted sorts segments and joins neighbors whose gap is within eps.
func mergeSorted(segs []Segment, eps float64) []Segment {
	sort.Slice(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	out := segs[:1]
	for _, seg := range segs[1:] {
		last := &out[len(out)-1]
		if seg.Start-last.End <= eps {
			if seg.End > last.End {
				last.End = seg.End
			}
			continue
		}
		out = append(out, seg)
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
