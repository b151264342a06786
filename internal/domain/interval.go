package domain

import (
	"sort"
	"time"
)

// Interval is a half-open time span [Start, End) in absolute instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start time.Time, d time.Duration) Interval {
	start = start.UTC()
	return Interval{Start: start, End: start.Add(d)}
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv Interval) IsEmpty() bool {
	return !iv.End.After(iv.Start)
}

func (iv Interval) UTC() Interval {
	return Interval{Start: iv.Start.UTC(), End: iv.End.UTC()}
}

// Overlaps reports whether a and b share any instant. Empty intervals overlap nothing.
func Overlaps(a, b Interval) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return false
	}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func Expand(iv Interval, before, after time.Duration) Interval {
	return Interval{Start: iv.Start.Add(-before), End: iv.End.Add(after)}
}

func Contains(outer, inner Interval) bool {
	return !inner.Start.Before(outer.Start) && !inner.End.After(outer.End)
}

// Subtract returns the ordered free parts of window that are not covered by occupied.
// Occupied intervals straddling a window edge are clipped; intervals fully inside split the window.
func Subtract(window Interval, occupied []Interval) []Interval {
	if window.IsEmpty() {
		return nil
	}

	sorted := sortedCopy(occupied)
	out := make([]Interval, 0, len(sorted)+1)
	cur := window.Start

	for _, o := range sorted {
		if o.IsEmpty() || !o.End.After(cur) {
			continue
		}
		if !o.Start.Before(window.End) {
			break
		}
		if o.Start.After(cur) {
			out = append(out, Interval{Start: cur, End: o.Start})
		}
		cur = o.End
		if !cur.Before(window.End) {
			return out
		}
	}

	if cur.Before(window.End) {
		out = append(out, Interval{Start: cur, End: window.End})
	}
	return out
}

// Union merges overlapping and touching intervals into an ordered, disjoint set.
func Union(ivs []Interval) []Interval {
	sorted := sortedCopy(ivs)
	out := make([]Interval, 0, len(sorted))
	for _, iv := range sorted {
		if iv.IsEmpty() {
			continue
		}
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

func sortedCopy(ivs []Interval) []Interval {
	out := make([]Interval, len(ivs))
	copy(out, ivs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
