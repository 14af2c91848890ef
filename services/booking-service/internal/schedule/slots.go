package schedule

// Window is one weekly availability window, as minutes since midnight.
// EndMin <= StartMin denotes an overnight window that spans midnight into
// the following calendar day; StartMin == EndMin is the degenerate 24-hour
// case.
type Window struct {
	StartMin int
	EndMin   int
}

func (w Window) Overnight() bool {
	return w.EndMin <= w.StartMin
}

func (w Window) Minutes() int {
	d, _ := Duration(w.StartMin, w.EndMin)
	return d
}

// Contains reports whether a wall-clock minute falls inside the window,
// half-open on the end. The booking admission path tests membership through
// this exact comparison, so a slot the generator marks bookable is always
// one admission would accept.
func (w Window) Contains(min int) bool {
	if w.Overnight() {
		return min >= w.StartMin || min < w.EndMin
	}
	return min >= w.StartMin && min < w.EndMin
}

// Slot is one discrete bookable interval derived from a window. Start and
// End are wall-clock minutes (End may be on the following day for overnight
// windows).
type Slot struct {
	StartMin  int
	EndMin    int
	Available bool
}

// Slots enumerates the bookable slots of the window for one date.
//
// bookedMins are the wall-clock start minutes of blocking bookings on that
// date. Each occupies [t, t+duration+buffer): its own slot plus the idle gap
// before the next slot may start. The walk steps by duration+buffer from the
// window start and stops strictly before the window end; booked times are
// never validated against the window, only against slot starts, so legacy
// bookings outside the window still suppress the slots they overlap.
func (w Window) Slots(bookedMins []int, duration, buffer int) []Slot {
	if duration <= 0 {
		return nil
	}

	end := w.StartMin + w.Minutes()
	step := duration + buffer

	type blocked struct{ from, to int }
	blocks := make([]blocked, 0, len(bookedMins))
	for _, t := range bookedMins {
		abs := t
		if w.Overnight() && t < w.StartMin {
			// Times numerically before the window start belong to the
			// post-midnight stretch of the window.
			abs += minutesPerDay
		}
		blocks = append(blocks, blocked{from: abs, to: abs + duration + buffer})
	}

	var slots []Slot
	for cur := w.StartMin; cur < end; cur += step {
		available := true
		for _, b := range blocks {
			if cur >= b.from && cur < b.to {
				available = false
				break
			}
		}
		slots = append(slots, Slot{
			StartMin:  cur,
			EndMin:    cur + duration,
			Available: available,
		})
	}
	return slots
}
