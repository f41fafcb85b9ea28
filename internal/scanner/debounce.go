package scanner

import "time"

// debouncer suppresses repeat detections of the same symbol until its window
// elapses, so one physical pass of a barcode emits one event. The window is
// anchored at the last emitted detection; suppressed repeats do not extend
// it, otherwise holding a label in front of the camera would block a
// deliberate second scan forever.
type debouncer struct {
	window time.Duration
	expiry map[string]time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window: window,
		expiry: make(map[string]time.Time),
	}
}

// accept reports whether a detection of symbol at now should be emitted.
func (d *debouncer) accept(symbol string, now time.Time) bool {
	if exp, ok := d.expiry[symbol]; ok && now.Before(exp) {
		return false
	}
	d.prune(now)
	d.expiry[symbol] = now.Add(d.window)
	return true
}

func (d *debouncer) prune(now time.Time) {
	for sym, exp := range d.expiry {
		if !now.Before(exp) {
			delete(d.expiry, sym)
		}
	}
}

func (d *debouncer) reset() {
	d.expiry = make(map[string]time.Time)
}
