package model

import "testing"

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusPending, StatusConfirmed, StatusCancelled, StatusStorno} {
		if !ValidStatus(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "booked", "PENDING", "done"} {
		if ValidStatus(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}

// Blocking statuses must match the partial unique index on bookings: a
// status that blocks here but not there would let double bookings through.
func TestBlockingStatus(t *testing.T) {
	blocking := map[string]bool{
		StatusPending:   true,
		StatusConfirmed: true,
		StatusCancelled: false,
		StatusStorno:    false,
	}
	for s, want := range blocking {
		if BlockingStatus(s) != want {
			t.Errorf("BlockingStatus(%q) = %v, want %v", s, !want, want)
		}
	}

	for _, s := range BlockingStatuses() {
		if !BlockingStatus(s) {
			t.Errorf("BlockingStatuses() lists %q but BlockingStatus rejects it", s)
		}
	}
	if got := len(BlockingStatuses()); got != 2 {
		t.Errorf("BlockingStatuses() has %d entries, want 2", got)
	}
}
