package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/an-orlov/consultbooking/libs/httpx"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/audit"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/cache"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/model"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/schedule"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/storage"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards the admin surface. The deployment configures a
// bcrypt hash, never the key itself; rejections are audited.
func RequireAdminKey(keyHash string, auditor Auditor) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if key == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
				auditor.Record(r.Context(), audit.EventAdminKeyBad, httpx.ClientKey(r), map[string]string{"path": r.URL.Path})
				writeError(w, http.StatusUnauthorized, "unauthorized", "admin key rejected")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type AdminHandler struct {
	consultants *storage.ConsultantRepository
	windows     *storage.AvailabilityRepository
	bookings    *storage.BookingRepository
	slots       cache.Cache
	logger      *slog.Logger
}

func NewAdminHandler(
	consultants *storage.ConsultantRepository,
	windows *storage.AvailabilityRepository,
	bookings *storage.BookingRepository,
	slots cache.Cache,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		consultants: consultants,
		windows:     windows,
		bookings:    bookings,
		slots:       slots,
		logger:      logger,
	}
}

type consultantItem struct {
	ConsultantID string `json:"consultant_id"`
	DisplayName  string `json:"display_name"`
	Email        string `json:"email"`
	Active       bool   `json:"active"`
}

func toConsultantItem(c model.Consultant) consultantItem {
	return consultantItem{
		ConsultantID: c.PublicID,
		DisplayName:  c.DisplayName,
		Email:        c.Email,
		Active:       c.Active,
	}
}

// Consultants serves /api/v1/admin/consultants: GET lists, POST registers.
func (h *AdminHandler) Consultants(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := h.consultants.List(r.Context())
		if err != nil {
			h.logger.Error("consultant list failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		items := make([]consultantItem, 0, len(list))
		for _, c := range list {
			items = append(items, toConsultantItem(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"consultants": items})

	case http.MethodPost:
		var req struct {
			DisplayName string `json:"display_name"`
			Email       string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
			return
		}
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		req.Email = strings.TrimSpace(req.Email)
		if req.DisplayName == "" || req.Email == "" {
			writeError(w, http.StatusUnprocessableEntity, "missing_fields", "display_name and email are required")
			return
		}
		c, err := h.consultants.Create(r.Context(), req.DisplayName, req.Email)
		if err != nil {
			h.logger.Error("consultant create failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, toConsultantItem(c))

	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// ConsultantActive serves POST /api/v1/admin/consultants/active.
func (h *AdminHandler) ConsultantActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req struct {
		ConsultantID string `json:"consultant_id"`
		Active       bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	c, err := h.consultants.SetActiveByPublicID(r.Context(), req.ConsultantID, req.Active)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "consultant_not_found", "consultant not found")
			return
		}
		h.logger.Error("consultant update failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	// A deactivated consultant must disappear from public listings at once.
	_ = h.slots.DeletePattern(r.Context(), cache.SlotsPattern(c.ID))
	writeJSON(w, http.StatusOK, toConsultantItem(c))
}

type windowItem struct {
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  string `json:"duration"`
}

// Availability serves /api/v1/admin/availability: GET reads the weekly
// schedule, PUT replaces it whole.
func (h *AdminHandler) Availability(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getAvailability(w, r)
	case http.MethodPut:
		h.putAvailability(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (h *AdminHandler) getAvailability(w http.ResponseWriter, r *http.Request) {
	consultant, ok := h.lookupConsultant(w, r, r.URL.Query().Get("consultant_id"))
	if !ok {
		return
	}
	windows, err := h.windows.ListWindows(r.Context(), consultant.ID)
	if err != nil {
		h.logger.Error("availability list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	items := make([]windowItem, 0, len(windows))
	for _, win := range windows {
		start, err := schedule.ParseClock(win.StartTime)
		if err != nil {
			h.logger.Error("stored window unparsable", "err", err, "consultant", consultant.PublicID)
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		end, err := schedule.ParseClock(win.EndTime)
		if err != nil {
			h.logger.Error("stored window unparsable", "err", err, "consultant", consultant.PublicID)
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		minutes, overnight := schedule.Duration(start, end)
		items = append(items, windowItem{
			Weekday:   win.Weekday,
			StartTime: schedule.FormatClock(start),
			EndTime:   schedule.FormatClock(end),
			Duration:  schedule.FormatDuration(minutes, overnight),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consultant_id": consultant.PublicID,
		"windows":       items,
	})
}

func (h *AdminHandler) putAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConsultantID string `json:"consultant_id"`
		Windows      []struct {
			Weekday   int    `json:"weekday"`
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
		} `json:"windows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	consultant, ok := h.lookupConsultant(w, r, req.ConsultantID)
	if !ok {
		return
	}

	seen := map[int]bool{}
	windows := make([]model.AvailabilityWindow, 0, len(req.Windows))
	for _, win := range req.Windows {
		if win.Weekday < 0 || win.Weekday > 6 {
			writeError(w, http.StatusUnprocessableEntity, "invalid_weekday", "weekday must be 0 (Sunday) through 6")
			return
		}
		if seen[win.Weekday] {
			writeError(w, http.StatusUnprocessableEntity, "duplicate_weekday", "at most one window per weekday")
			return
		}
		seen[win.Weekday] = true

		start, err := schedule.ParseClock(win.StartTime)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_time", "start_time must be HH:MM")
			return
		}
		end, err := schedule.ParseClock(win.EndTime)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid_time", "end_time must be HH:MM")
			return
		}
		windows = append(windows, model.AvailabilityWindow{
			ConsultantID: consultant.ID,
			Weekday:      win.Weekday,
			StartTime:    schedule.FormatClock(start) + ":00",
			EndTime:      schedule.FormatClock(end) + ":00",
		})
	}

	if err := h.windows.Replace(r.Context(), consultant, windows); err != nil {
		h.logger.Error("availability replace failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	// Every cached date of this consultant may now be stale.
	_ = h.slots.DeletePattern(r.Context(), cache.SlotsPattern(consultant.ID))
	writeJSON(w, http.StatusOK, map[string]any{
		"consultant_id": consultant.PublicID,
		"window_count":  len(windows),
	})
}

type bookingItem struct {
	BookingID     int64  `json:"booking_id"`
	BookingRef    string `json:"booking_ref"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	BookingDate   string `json:"booking_date"`
	BookingTime   string `json:"booking_time"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// Bookings serves /api/v1/admin/bookings: GET lists, DELETE removes.
func (h *AdminHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listBookings(w, r)
	case http.MethodDelete:
		h.deleteBooking(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (h *AdminHandler) listBookings(w http.ResponseWriter, r *http.Request) {
	consultant, ok := h.lookupConsultant(w, r, r.URL.Query().Get("consultant_id"))
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.bookings.ListByConsultant(r.Context(), consultant.ID, limit)
	if err != nil {
		h.logger.Error("booking list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	items := make([]bookingItem, 0, len(list))
	for _, b := range list {
		items = append(items, bookingItem{
			BookingID:     b.ID,
			BookingRef:    b.PublicRef,
			CustomerName:  b.CustomerName,
			CustomerEmail: b.CustomerEmail,
			BookingDate:   b.BookingDate,
			BookingTime:   b.BookingTime,
			Status:        b.Status,
			CreatedAt:     b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consultant_id": consultant.PublicID,
		"bookings":      items,
	})
}

func (h *AdminHandler) deleteBooking(w http.ResponseWriter, r *http.Request) {
	consultant, ok := h.lookupConsultant(w, r, r.URL.Query().Get("consultant_id"))
	if !ok {
		return
	}
	bookingID, err := strconv.ParseInt(r.URL.Query().Get("booking_id"), 10, 64)
	if err != nil || bookingID <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "invalid_booking_id", "booking_id must be a positive integer")
		return
	}
	date, err := h.bookings.Delete(r.Context(), consultant.ID, bookingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking_not_found", "booking not found")
			return
		}
		h.logger.Error("booking delete failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	_ = h.slots.Delete(r.Context(), cache.SlotsKey(consultant.ID, date))
	w.WriteHeader(http.StatusNoContent)
}

// BookingStatus serves POST /api/v1/admin/bookings/status.
func (h *AdminHandler) BookingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req struct {
		ConsultantID string `json:"consultant_id"`
		BookingID    int64  `json:"booking_id"`
		Status       string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if !model.ValidStatus(req.Status) {
		writeError(w, http.StatusUnprocessableEntity, "invalid_status", "status must be pending, confirmed, cancelled or storno")
		return
	}
	consultant, ok := h.lookupConsultant(w, r, req.ConsultantID)
	if !ok {
		return
	}

	b, err := h.bookings.UpdateStatus(r.Context(), consultant, req.BookingID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "booking_not_found", "booking not found")
		case errors.Is(err, storage.ErrSlotTaken):
			writeError(w, http.StatusConflict, "slot_taken", "slot is already taken")
		default:
			h.logger.Error("booking status update failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
		}
		return
	}
	// Cancelling frees the slot, reviving occupies it; either way the
	// listing for that date changed.
	_ = h.slots.Delete(r.Context(), cache.SlotsKey(consultant.ID, b.BookingDate))
	writeJSON(w, http.StatusOK, bookingItem{
		BookingID:     b.ID,
		BookingRef:    b.PublicRef,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		BookingDate:   b.BookingDate,
		BookingTime:   b.BookingTime,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

func (h *AdminHandler) lookupConsultant(w http.ResponseWriter, r *http.Request, publicID string) (model.Consultant, bool) {
	consultant, err := h.consultants.GetByPublicID(r.Context(), publicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "consultant_not_found", "consultant not found")
			return model.Consultant{}, false
		}
		h.logger.Error("consultant lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return model.Consultant{}, false
	}
	return consultant, true
}
