// Package admission decides whether a public booking request becomes a
// pending booking. The controller works on an explicit Request struct and
// small store interfaces; it never sees transport-level state, and the
// database unique constraint is the only arbiter of slot races.
package admission

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/an-orlov/consultbooking/services/booking-service/internal/cache"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/model"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/outbox"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/schedule"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/storage"
)

var (
	ErrInvalidName        = errors.New("invalid customer name")
	ErrInvalidEmail       = errors.New("invalid customer email")
	ErrConsultantNotFound = errors.New("consultant not found")
	ErrInvalidDate        = errors.New("invalid booking date")
	ErrPastDate           = errors.New("booking date in the past")
	ErrDateTooFar         = errors.New("booking date too far ahead")
	ErrInvalidTime        = errors.New("invalid booking time")
	ErrNoAvailability     = errors.New("no availability on that day")
	ErrOutsideHours       = errors.New("time outside availability window")
	ErrSlotTaken          = errors.New("slot already taken")
)

// Request is the validated-at-the-boundary input. All fields arrive as the
// client sent them; Admit owns every check.
type Request struct {
	ConsultantPublicID string
	CustomerName       string
	CustomerEmail      string
	Date               string // YYYY-MM-DD
	Time               string // HH:MM
}

type ConsultantStore interface {
	GetActiveByPublicID(ctx context.Context, publicID string) (model.Consultant, error)
}

type WindowStore interface {
	WindowForDay(ctx context.Context, consultantID int64, weekday int) (model.AvailabilityWindow, error)
}

type BookingStore interface {
	CreatePending(ctx context.Context, b *model.Booking, evt outbox.Event) (int64, error)
}

type Invalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

type Controller struct {
	consultants    ConsultantStore
	windows        WindowStore
	bookings       BookingStore
	cache          Invalidator
	maxAdvanceDays int
	now            func() time.Time
}

func NewController(consultants ConsultantStore, windows WindowStore, bookings BookingStore, inv Invalidator, maxAdvanceDays int) *Controller {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = 90
	}
	return &Controller{
		consultants:    consultants,
		windows:        windows,
		bookings:       bookings,
		cache:          inv,
		maxAdvanceDays: maxAdvanceDays,
		now:            time.Now,
	}
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Admit runs the full pipeline: identity checks, calendar bounds, window
// membership, then the constraint-guarded insert. Checks run cheapest
// first; the first failure wins and no later check can mask it.
func (c *Controller) Admit(ctx context.Context, req Request) (model.Booking, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" || len(name) > 200 {
		return model.Booking{}, ErrInvalidName
	}

	email := strings.TrimSpace(req.CustomerEmail)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.Booking{}, ErrInvalidEmail
	}

	consultant, err := c.consultants.GetActiveByPublicID(ctx, req.ConsultantPublicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Booking{}, ErrConsultantNotFound
		}
		return model.Booking{}, err
	}

	day, err := c.checkDate(req.Date)
	if err != nil {
		return model.Booking{}, err
	}

	startMin, err := c.checkTime(req.Time)
	if err != nil {
		return model.Booking{}, err
	}

	window, err := c.windows.WindowForDay(ctx, consultant.ID, int(day.Weekday()))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Booking{}, ErrNoAvailability
		}
		return model.Booking{}, err
	}
	w, err := toWindow(window)
	if err != nil {
		return model.Booking{}, err
	}
	if !w.Contains(startMin) {
		return model.Booking{}, ErrOutsideHours
	}

	booking := model.Booking{
		PublicRef:     uuid.NewString(),
		ConsultantID:  consultant.ID,
		CustomerName:  name,
		CustomerEmail: email,
		BookingDate:   req.Date,
		BookingTime:   schedule.FormatClock(startMin),
		Status:        model.StatusPending,
	}

	evt, err := outbox.NewEvent("booking", booking.PublicRef, outbox.EventSlotReserved, outbox.SlotReservedPayload{
		BookingRef:         booking.PublicRef,
		ConsultantPublicID: consultant.PublicID,
		ConsultantName:     consultant.DisplayName,
		ConsultantEmail:    consultant.Email,
		CustomerName:       booking.CustomerName,
		CustomerEmail:      booking.CustomerEmail,
		BookingDate:        booking.BookingDate,
		BookingTime:        booking.BookingTime,
	})
	if err != nil {
		return model.Booking{}, err
	}

	id, err := c.bookings.CreatePending(ctx, &booking, evt)
	if err != nil {
		if errors.Is(err, storage.ErrSlotTaken) {
			return model.Booking{}, ErrSlotTaken
		}
		return model.Booking{}, err
	}
	booking.ID = id

	// Synchronous invalidation: the next availability read recomputes.
	_ = c.cache.Delete(ctx, cache.SlotsKey(consultant.ID, booking.BookingDate))

	return booking, nil
}

// CheckDate exposes the calendar bounds for the availability endpoint,
// which shares them with booking admission.
func (c *Controller) CheckDate(date string) (time.Time, error) {
	return c.checkDate(date)
}

func (c *Controller) checkDate(date string) (time.Time, error) {
	if !dateRe.MatchString(date) {
		return time.Time{}, ErrInvalidDate
	}
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}

	now := c.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return time.Time{}, ErrPastDate
	}
	if day.After(today.AddDate(0, 0, c.maxAdvanceDays)) {
		return time.Time{}, ErrDateTooFar
	}
	return day, nil
}

func (c *Controller) checkTime(t string) (int, error) {
	if strings.Count(t, ":") != 1 {
		return 0, ErrInvalidTime
	}
	min, err := schedule.ParseClock(t)
	if err != nil {
		return 0, ErrInvalidTime
	}
	return min, nil
}

func toWindow(w model.AvailabilityWindow) (schedule.Window, error) {
	start, err := schedule.ParseClock(w.StartTime)
	if err != nil {
		return schedule.Window{}, err
	}
	end, err := schedule.ParseClock(w.EndTime)
	if err != nil {
		return schedule.Window{}, err
	}
	return schedule.Window{StartMin: start, EndMin: end}, nil
}
