package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/an-orlov/consultbooking/services/booking-service/internal/admission"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/cache"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/schedule"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/storage"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/token"
)

// SlotConfig is the deployment-wide slot shape: appointment length plus the
// idle gap kept after each one.
type SlotConfig struct {
	DurationMinutes int
	BufferMinutes   int
	CacheTTL        time.Duration
}

type AvailabilityHandler struct {
	consultants *storage.ConsultantRepository
	windows     *storage.AvailabilityRepository
	bookings    *storage.BookingRepository
	slots       cache.Cache
	checker     *admission.Controller
	tokens      *token.Verifier
	logger      *slog.Logger
	cfg         SlotConfig
}

func NewAvailabilityHandler(
	consultants *storage.ConsultantRepository,
	windows *storage.AvailabilityRepository,
	bookings *storage.BookingRepository,
	slots cache.Cache,
	checker *admission.Controller,
	tokens *token.Verifier,
	logger *slog.Logger,
	cfg SlotConfig,
) *AvailabilityHandler {
	if cfg.DurationMinutes <= 0 {
		cfg.DurationMinutes = 60
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &AvailabilityHandler{
		consultants: consultants,
		windows:     windows,
		bookings:    bookings,
		slots:       slots,
		checker:     checker,
		tokens:      tokens,
		logger:      logger,
		cfg:         cfg,
	}
}

type windowInfo struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration string `json:"duration"`
}

type slotItem struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// dayAvailability is the cached portion: everything derivable from the
// schedule and the bookings of one date. The form token is minted per
// request on top of it.
type dayAvailability struct {
	Window *windowInfo `json:"window"`
	Slots  []slotItem  `json:"slots"`
}

type availabilityResponse struct {
	ConsultantID string      `json:"consultant_id"`
	Date         string      `json:"date"`
	DayOfWeek    int         `json:"day_of_week"`
	Window       *windowInfo `json:"window"`
	Slots        []slotItem  `json:"slots"`
	FormToken    string      `json:"form_token,omitempty"`
}

// Get serves GET /api/v1/public/availability?consultant_id=...&date=...
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ctx := r.Context()

	publicID := r.URL.Query().Get("consultant_id")
	date := r.URL.Query().Get("date")

	consultant, err := h.consultants.GetActiveByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid_consultant", "unknown consultant")
			return
		}
		h.logger.Error("consultant lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	day, err := h.checker.CheckDate(date)
	if err != nil {
		status, code, msg := mapAdmissionError(err)
		writeError(w, status, code, msg)
		return
	}

	weekday := int(day.Weekday())
	payload, err := h.slots.Remember(ctx, cache.SlotsKey(consultant.ID, date), h.cfg.CacheTTL, func(ctx context.Context) ([]byte, error) {
		avail, err := h.computeDay(ctx, consultant.ID, date, weekday)
		if err != nil {
			return nil, err
		}
		return json.Marshal(avail)
	})
	if err != nil {
		h.logger.Error("availability computation failed", "err", err, "consultant", consultant.PublicID, "date", date)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	var avail dayAvailability
	if err := json.Unmarshal(payload, &avail); err != nil {
		h.logger.Error("corrupt cached availability", "err", err, "consultant", consultant.PublicID, "date", date)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{
		ConsultantID: consultant.PublicID,
		Date:         date,
		DayOfWeek:    weekday,
		Window:       avail.Window,
		Slots:        avail.Slots,
		FormToken:    h.tokens.Generate(),
	})
}

func (h *AvailabilityHandler) computeDay(ctx context.Context, consultantID int64, date string, weekday int) (dayAvailability, error) {
	window, err := h.windows.WindowForDay(ctx, consultantID, weekday)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// No window that day: empty listing, not an error.
			return dayAvailability{Slots: []slotItem{}}, nil
		}
		return dayAvailability{}, err
	}

	startMin, err := schedule.ParseClock(window.StartTime)
	if err != nil {
		return dayAvailability{}, err
	}
	endMin, err := schedule.ParseClock(window.EndTime)
	if err != nil {
		return dayAvailability{}, err
	}
	w := schedule.Window{StartMin: startMin, EndMin: endMin}

	bookedTimes, err := h.bookings.BlockingTimes(ctx, consultantID, date)
	if err != nil {
		return dayAvailability{}, err
	}
	booked := make([]int, 0, len(bookedTimes))
	for _, t := range bookedTimes {
		min, err := schedule.ParseClock(t)
		if err != nil {
			return dayAvailability{}, err
		}
		booked = append(booked, min)
	}

	slots := w.Slots(booked, h.cfg.DurationMinutes, h.cfg.BufferMinutes)
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			Start:     schedule.FormatClock(s.StartMin),
			End:       schedule.FormatClock(s.EndMin),
			Available: s.Available,
		})
	}

	minutes, overnight := schedule.Duration(w.StartMin, w.EndMin)
	return dayAvailability{
		Window: &windowInfo{
			Start:    schedule.FormatClock(w.StartMin),
			End:      schedule.FormatClock(w.EndMin),
			Duration: schedule.FormatDuration(minutes, overnight),
		},
		Slots: items,
	}, nil
}
