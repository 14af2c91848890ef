package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/an-orlov/consultbooking/libs/httpx"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/admission"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/audit"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/model"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/token"
)

// TokenHeader carries the form token minted by the availability endpoint.
const TokenHeader = "X-CS-Token"

type Admitter interface {
	Admit(ctx context.Context, req admission.Request) (model.Booking, error)
}

type Auditor interface {
	Record(ctx context.Context, eventType, clientKey string, detail map[string]string)
}

type BookingHandler struct {
	admit  Admitter
	tokens *token.Verifier
	audit  Auditor
	logger *slog.Logger
}

func NewBookingHandler(admit Admitter, tokens *token.Verifier, auditor Auditor, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{admit: admit, tokens: tokens, audit: auditor, logger: logger}
}

type createBookingRequest struct {
	ConsultantID  string `json:"consultant_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	BookingDate   string `json:"booking_date"`
	BookingTime   string `json:"booking_time"`
	// Honeypot. Hidden in the real form; anything filling it is a bot.
	Website string `json:"website"`
}

type createBookingResponse struct {
	BookingRef  string `json:"booking_ref"`
	Status      string `json:"status"`
	BookingDate string `json:"booking_date"`
	BookingTime string `json:"booking_time"`
}

// Create serves POST /api/v1/public/bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	ctx := r.Context()
	client := httpx.ClientKey(r)

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	if req.Website != "" {
		// Bots get a success they cannot tell from the real one, and no row.
		h.audit.Record(ctx, audit.EventHoneypotHit, client, map[string]string{"consultant_id": req.ConsultantID})
		writeJSON(w, http.StatusCreated, createBookingResponse{
			BookingRef:  uuid.NewString(),
			Status:      model.StatusPending,
			BookingDate: req.BookingDate,
			BookingTime: req.BookingTime,
		})
		return
	}

	if err := h.tokens.Verify(r.Header.Get(TokenHeader)); err != nil {
		var event, code string
		switch {
		case errors.Is(err, token.ErrMissing):
			event, code = audit.EventTokenMissing, "missing_token"
		case errors.Is(err, token.ErrExpired):
			event, code = audit.EventTokenExpired, "expired_token"
		default:
			event, code = audit.EventTokenInvalid, "invalid_token"
		}
		h.audit.Record(ctx, event, client, nil)
		writeError(w, http.StatusForbidden, code, "form token rejected")
		return
	}

	booking, err := h.admit.Admit(ctx, admission.Request{
		ConsultantPublicID: req.ConsultantID,
		CustomerName:       req.CustomerName,
		CustomerEmail:      req.CustomerEmail,
		Date:               req.BookingDate,
		Time:               req.BookingTime,
	})
	if err != nil {
		status, code, msg := mapAdmissionError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("booking admission failed", "err", err)
		}
		if errors.Is(err, admission.ErrSlotTaken) {
			h.audit.Record(ctx, audit.EventSlotConflict, client, map[string]string{
				"consultant_id": req.ConsultantID,
				"date":          req.BookingDate,
				"time":          req.BookingTime,
			})
		}
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, createBookingResponse{
		BookingRef:  booking.PublicRef,
		Status:      booking.Status,
		BookingDate: booking.BookingDate,
		BookingTime: booking.BookingTime,
	})
}

func mapAdmissionError(err error) (int, string, string) {
	switch {
	case errors.Is(err, admission.ErrInvalidName):
		return http.StatusBadRequest, "invalid_name", "customer name is required"
	case errors.Is(err, admission.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_email", "customer email is invalid"
	case errors.Is(err, admission.ErrConsultantNotFound):
		return http.StatusBadRequest, "invalid_consultant", "unknown consultant"
	case errors.Is(err, admission.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_date", "booking date must be YYYY-MM-DD"
	case errors.Is(err, admission.ErrPastDate):
		return http.StatusBadRequest, "past_date", "booking date is in the past"
	case errors.Is(err, admission.ErrDateTooFar):
		return http.StatusBadRequest, "date_too_far", "booking date is too far ahead"
	case errors.Is(err, admission.ErrInvalidTime):
		return http.StatusBadRequest, "invalid_time", "booking time must be HH:MM"
	case errors.Is(err, admission.ErrNoAvailability):
		return http.StatusBadRequest, "no_availability", "no availability on that day"
	case errors.Is(err, admission.ErrOutsideHours):
		return http.StatusBadRequest, "outside_hours", "time is outside the availability window"
	case errors.Is(err, admission.ErrSlotTaken):
		return http.StatusConflict, "slot_taken", "slot is already taken"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
