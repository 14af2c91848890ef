package schedule

import "testing"

func slotStarts(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = FormatClock(s.StartMin)
	}
	return out
}

func TestSlots_FullDayWindowNoBookings(t *testing.T) {
	// 09:00-17:00, 60 minute slots, no buffer.
	w := Window{StartMin: 540, EndMin: 1020}
	slots := w.Slots(nil, 60, 0)

	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d: %v", len(slots), slotStarts(slots))
	}
	for i, s := range slots {
		if !s.Available {
			t.Errorf("slot %d (%s) should be available", i, FormatClock(s.StartMin))
		}
	}
	if slots[0].StartMin != 540 || slots[7].StartMin != 960 {
		t.Fatalf("unexpected slot bounds: first %d last %d", slots[0].StartMin, slots[7].StartMin)
	}
}

func TestSlots_BookedSlotBlocked(t *testing.T) {
	w := Window{StartMin: 540, EndMin: 1020}
	slots := w.Slots([]int{600}, 60, 0) // booking at 10:00

	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.StartMin == 600 {
			if s.Available {
				t.Error("10:00 slot should be blocked")
			}
			continue
		}
		if !s.Available {
			t.Errorf("slot %s should be available", FormatClock(s.StartMin))
		}
	}
}

func TestSlots_OvernightWindow(t *testing.T) {
	// 22:00-02:00 spans midnight and yields four hourly slots.
	w := Window{StartMin: 1320, EndMin: 120}
	slots := w.Slots(nil, 60, 0)

	want := []string{"22:00", "23:00", "00:00", "01:00"}
	got := slotStarts(slots)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if end := FormatClock(slots[3].EndMin); end != "02:00" {
		t.Fatalf("last slot should end 02:00, got %s", end)
	}
}

func TestSlots_OvernightBookingAfterMidnight(t *testing.T) {
	// A booking at 00:00 belongs to the post-midnight stretch of the window.
	w := Window{StartMin: 1320, EndMin: 120}
	slots := w.Slots([]int{0}, 60, 0)

	for _, s := range slots {
		wantAvail := FormatClock(s.StartMin) != "00:00"
		if s.Available != wantAvail {
			t.Errorf("slot %s available=%v, want %v", FormatClock(s.StartMin), s.Available, wantAvail)
		}
	}
}

func TestSlots_BufferExtendsBlockedInterval(t *testing.T) {
	// duration 60 + buffer 15: a booking at 10:00 occupies [10:00, 11:15),
	// so a slot starting 11:00 would be blocked. The walk itself steps by
	// 75 minutes, so the next generated slot starts 11:15 and is free.
	w := Window{StartMin: 540, EndMin: 1020}
	slots := w.Slots([]int{600}, 60, 15)

	byStart := map[string]bool{}
	for _, s := range slots {
		byStart[FormatClock(s.StartMin)] = s.Available
	}
	if avail, ok := byStart["10:15"]; !ok || avail {
		t.Fatalf("10:15 slot should exist and be blocked: %v", byStart)
	}
	if avail, ok := byStart["11:30"]; !ok || !avail {
		t.Fatalf("11:30 slot should exist and be available: %v", byStart)
	}
	if !byStart["09:00"] {
		t.Fatal("09:00 slot should be available")
	}
}

func TestSlots_BookingBeforeWindowStillBlocks(t *testing.T) {
	// Legacy bookings outside the window still suppress slots they overlap:
	// 08:30 with duration 60 covers [08:30, 09:30), blocking the 09:00 slot.
	w := Window{StartMin: 540, EndMin: 1020}
	slots := w.Slots([]int{510}, 60, 0)

	if slots[0].Available {
		t.Error("09:00 slot overlapped by an 08:30 booking should be blocked")
	}
	if !slots[1].Available {
		t.Error("10:00 slot should be available")
	}
}

func TestSlots_IdempotentForSameInputs(t *testing.T) {
	w := Window{StartMin: 1320, EndMin: 120}
	a := w.Slots([]int{1380, 30}, 60, 15)
	b := w.Slots([]int{1380, 30}, 60, 15)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSlots_NonPositiveDuration(t *testing.T) {
	w := Window{StartMin: 540, EndMin: 1020}
	if got := w.Slots(nil, 0, 0); got != nil {
		t.Fatalf("expected nil for zero duration, got %v", got)
	}
}

func TestContains(t *testing.T) {
	day := Window{StartMin: 540, EndMin: 1020}
	if !day.Contains(540) || !day.Contains(1019) {
		t.Error("bounds of a daytime window misclassified")
	}
	if day.Contains(1020) || day.Contains(539) {
		t.Error("minutes outside a daytime window accepted")
	}

	night := Window{StartMin: 1320, EndMin: 120}
	for _, m := range []int{1320, 1439, 0, 119} {
		if !night.Contains(m) {
			t.Errorf("overnight window should contain %s", FormatClock(m))
		}
	}
	for _, m := range []int{120, 600, 1319} {
		if night.Contains(m) {
			t.Errorf("overnight window should not contain %s", FormatClock(m))
		}
	}
}

// Every slot the generator emits starts inside the window as the admission
// path sees it. The two share Contains, so a bookable slot is always one
// admission accepts.
func TestSlots_StartsAgreeWithContains(t *testing.T) {
	windows := []Window{
		{StartMin: 540, EndMin: 1020},
		{StartMin: 1320, EndMin: 120},
		{StartMin: 600, EndMin: 600},
	}
	for _, w := range windows {
		for _, s := range w.Slots(nil, 45, 15) {
			if !w.Contains(s.StartMin % minutesPerDay) {
				t.Errorf("window %+v emitted slot start %s outside itself", w, FormatClock(s.StartMin))
			}
		}
	}
}
