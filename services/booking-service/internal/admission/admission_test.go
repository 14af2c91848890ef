package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/an-orlov/consultbooking/services/booking-service/internal/model"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/outbox"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/storage"
)

type fakeConsultants struct {
	byPublicID map[string]model.Consultant
}

func (f *fakeConsultants) GetActiveByPublicID(_ context.Context, publicID string) (model.Consultant, error) {
	c, ok := f.byPublicID[publicID]
	if !ok {
		return model.Consultant{}, storage.ErrNotFound
	}
	return c, nil
}

type fakeWindows struct {
	byWeekday map[int]model.AvailabilityWindow
}

func (f *fakeWindows) WindowForDay(_ context.Context, _ int64, weekday int) (model.AvailabilityWindow, error) {
	w, ok := f.byWeekday[weekday]
	if !ok {
		return model.AvailabilityWindow{}, storage.ErrNotFound
	}
	return w, nil
}

// fakeBookings enforces slot uniqueness the way the partial unique index
// does, guarded by a mutex so concurrent Admit calls race realistically.
type fakeBookings struct {
	mu     sync.Mutex
	nextID int64
	taken  map[string]bool
	events []outbox.Event
}

func (f *fakeBookings) CreatePending(_ context.Context, b *model.Booking, evt outbox.Event) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := b.BookingDate + "/" + b.BookingTime
	if f.taken == nil {
		f.taken = map[string]bool{}
	}
	if f.taken[key] {
		return 0, storage.ErrSlotTaken
	}
	f.taken[key] = true
	f.nextID++
	f.events = append(f.events, evt)
	return f.nextID, nil
}

func (f *fakeBookings) free(date, t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.taken, date+"/"+t)
}

type fakeInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeInvalidator) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, keys...)
	return nil
}

func newTestController(bookings *fakeBookings, inv *fakeInvalidator) *Controller {
	consultants := &fakeConsultants{byPublicID: map[string]model.Consultant{
		"c-1": {ID: 7, PublicID: "c-1", DisplayName: "Dana", Email: "dana@example.com", Active: true},
	}}
	windows := &fakeWindows{byWeekday: map[int]model.AvailabilityWindow{
		// Monday 09:00-17:00, Friday 22:00-02:00 overnight.
		1: {ConsultantID: 7, Weekday: 1, StartTime: "09:00:00", EndTime: "17:00:00"},
		5: {ConsultantID: 7, Weekday: 5, StartTime: "22:00:00", EndTime: "02:00:00"},
	}}
	c := NewController(consultants, windows, bookings, inv, 90)
	// 2026-08-24 is a Monday.
	c.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }
	return c
}

func validRequest() Request {
	return Request{
		ConsultantPublicID: "c-1",
		CustomerName:       "Alex Doe",
		CustomerEmail:      "alex@example.com",
		Date:               "2026-08-31", // the following Monday
		Time:               "10:00",
	}
}

func TestAdmit_Success(t *testing.T) {
	bookings := &fakeBookings{}
	inv := &fakeInvalidator{}
	c := newTestController(bookings, inv)

	b, err := c.Admit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if b.ID == 0 || b.Status != model.StatusPending {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if b.PublicRef == "" {
		t.Fatal("booking should carry a public reference")
	}
	if b.ConsultantID != 7 || b.BookingTime != "10:00" {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if len(bookings.events) != 1 || bookings.events[0].EventType != outbox.EventSlotReserved {
		t.Fatalf("expected one slot.reserved event, got %+v", bookings.events)
	}
	if len(inv.keys) != 1 || inv.keys[0] != "slots:7:2026-08-31" {
		t.Fatalf("expected slot cache invalidation, got %v", inv.keys)
	}
}

func TestAdmit_ValidationOrder(t *testing.T) {
	c := newTestController(&fakeBookings{}, &fakeInvalidator{})

	cases := []struct {
		name    string
		mutate  func(*Request)
		wantErr error
	}{
		{"empty name", func(r *Request) { r.CustomerName = "   " }, ErrInvalidName},
		{"bad email", func(r *Request) { r.CustomerEmail = "not-an-email" }, ErrInvalidEmail},
		{"email with display name", func(r *Request) { r.CustomerEmail = "Alex <alex@example.com>" }, ErrInvalidEmail},
		{"unknown consultant", func(r *Request) { r.ConsultantPublicID = "ghost" }, ErrConsultantNotFound},
		{"malformed date", func(r *Request) { r.Date = "31-08-2026" }, ErrInvalidDate},
		{"impossible date", func(r *Request) { r.Date = "2026-02-30" }, ErrInvalidDate},
		{"past date", func(r *Request) { r.Date = "2026-08-23" }, ErrPastDate},
		{"too far ahead", func(r *Request) { r.Date = "2026-12-01" }, ErrDateTooFar},
		{"malformed time", func(r *Request) { r.Time = "10am" }, ErrInvalidTime},
		{"seconds not accepted", func(r *Request) { r.Time = "10:00:00" }, ErrInvalidTime},
		{"no window that day", func(r *Request) { r.Date = "2026-08-30" }, ErrNoAvailability}, // Sunday
		{"before window", func(r *Request) { r.Time = "08:00" }, ErrOutsideHours},
		{"at window end", func(r *Request) { r.Time = "17:00" }, ErrOutsideHours},
	}
	for _, tc := range cases {
		req := validRequest()
		tc.mutate(&req)
		if _, err := c.Admit(context.Background(), req); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}

	// Name is checked before email: a request failing both reports the name.
	req := validRequest()
	req.CustomerName = ""
	req.CustomerEmail = "junk"
	if _, err := c.Admit(context.Background(), req); !errors.Is(err, ErrInvalidName) {
		t.Errorf("name check should run first, got %v", err)
	}
}

func TestAdmit_OvernightWindow(t *testing.T) {
	c := newTestController(&fakeBookings{}, &fakeInvalidator{})

	// 2026-08-28 is a Friday; its window runs 22:00-02:00.
	req := validRequest()
	req.Date = "2026-08-28"

	for _, tt := range []string{"22:00", "23:30", "00:30", "01:59"} {
		req.Time = tt
		if _, err := c.Admit(context.Background(), req); err != nil {
			t.Errorf("time %s inside overnight window rejected: %v", tt, err)
		}
	}
	for _, tt := range []string{"02:00", "12:00", "21:59"} {
		req.Time = tt
		if _, err := c.Admit(context.Background(), req); !errors.Is(err, ErrOutsideHours) {
			t.Errorf("time %s outside overnight window: got %v, want ErrOutsideHours", tt, err)
		}
	}
}

func TestAdmit_ConcurrentSameSlot(t *testing.T) {
	bookings := &fakeBookings{}
	c := newTestController(bookings, &fakeInvalidator{})

	const n = 8
	results := make(chan error, n)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < n; i++ {
		go func() {
			start.Wait()
			_, err := c.Admit(context.Background(), validRequest())
			results <- err
		}()
	}
	start.Done()

	var wins, conflicts int
	for i := 0; i < n; i++ {
		switch err := <-results; {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != n-1 {
		t.Fatalf("expected exactly one winner, got %d wins / %d conflicts", wins, conflicts)
	}
}

func TestAdmit_FreedSlotBookableAgain(t *testing.T) {
	bookings := &fakeBookings{}
	c := newTestController(bookings, &fakeInvalidator{})

	req := validRequest()
	if _, err := c.Admit(context.Background(), req); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := c.Admit(context.Background(), req); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("second booking should conflict, got %v", err)
	}

	bookings.free(req.Date, req.Time)
	if _, err := c.Admit(context.Background(), req); err != nil {
		t.Fatalf("freed slot should be bookable again: %v", err)
	}
}

func TestAdmit_TrimsName(t *testing.T) {
	bookings := &fakeBookings{}
	c := newTestController(bookings, &fakeInvalidator{})

	req := validRequest()
	req.CustomerName = "  Alex Doe  "
	b, err := c.Admit(context.Background(), req)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if b.CustomerName != "Alex Doe" {
		t.Fatalf("name should be trimmed, got %q", b.CustomerName)
	}
}
