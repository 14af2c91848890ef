package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/an-orlov/consultbooking/services/booking-service/internal/admission"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/audit"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/model"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/token"
)

type fakeAdmitter struct {
	booking model.Booking
	err     error
	got     *admission.Request
}

func (f *fakeAdmitter) Admit(_ context.Context, req admission.Request) (model.Booking, error) {
	f.got = &req
	if f.err != nil {
		return model.Booking{}, f.err
	}
	return f.booking, nil
}

type fakeAuditor struct {
	events []string
}

func (f *fakeAuditor) Record(_ context.Context, eventType, _ string, _ map[string]string) {
	f.events = append(f.events, eventType)
}

func testVerifier() *token.Verifier {
	return token.NewVerifier("test-secret", 5*time.Minute)
}

func postBooking(h *BookingHandler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/public/bookings", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.9:4242"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rw := httptest.NewRecorder()
	h.Create(rw, req)
	return rw
}

func TestBookingCreate_Success(t *testing.T) {
	admitter := &fakeAdmitter{booking: model.Booking{
		ID: 1, PublicRef: "11111111-2222-3333-4444-555555555555",
		BookingDate: "2026-08-31", BookingTime: "10:00", Status: model.StatusPending,
	}}
	auditor := &fakeAuditor{}
	v := testVerifier()
	h := NewBookingHandler(admitter, v, auditor, nil)

	body := `{"consultant_id":"c-1","customer_name":"Alex","customer_email":"alex@example.com","booking_date":"2026-08-31","booking_time":"10:00"}`
	rw := postBooking(h, body, map[string]string{TokenHeader: v.Generate()})

	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp createBookingResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.BookingRef != admitter.booking.PublicRef || resp.Status != model.StatusPending {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if admitter.got == nil || admitter.got.ConsultantPublicID != "c-1" {
		t.Fatalf("admitter received %+v", admitter.got)
	}
	if len(auditor.events) != 0 {
		t.Fatalf("clean booking should not audit, got %v", auditor.events)
	}
}

func TestBookingCreate_HoneypotFakesSuccess(t *testing.T) {
	admitter := &fakeAdmitter{}
	auditor := &fakeAuditor{}
	h := NewBookingHandler(admitter, testVerifier(), auditor, nil)

	body := `{"consultant_id":"c-1","customer_name":"Bot","customer_email":"bot@example.com","booking_date":"2026-08-31","booking_time":"10:00","website":"http://spam.example"}`
	rw := postBooking(h, body, nil)

	if rw.Code != http.StatusCreated {
		t.Fatalf("honeypot must answer 201, got %d", rw.Code)
	}
	var resp createBookingResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.BookingRef == "" || resp.Status != model.StatusPending {
		t.Fatalf("decoy must look like a real booking: %+v", resp)
	}
	if admitter.got != nil {
		t.Fatal("honeypot hit must never reach admission")
	}
	if len(auditor.events) != 1 || auditor.events[0] != audit.EventHoneypotHit {
		t.Fatalf("expected honeypot audit event, got %v", auditor.events)
	}
}

func TestBookingCreate_TokenRejections(t *testing.T) {
	expired := token.NewVerifier("test-secret", time.Nanosecond)
	expiredToken := expired.Generate()
	time.Sleep(time.Millisecond)

	cases := []struct {
		name      string
		verifier  *token.Verifier
		token     string
		wantCode  string
		wantEvent string
	}{
		{"missing", testVerifier(), "", "missing_token", audit.EventTokenMissing},
		{"garbage", testVerifier(), "123:deadbeef", "invalid_token", audit.EventTokenInvalid},
		{"expired", expired, expiredToken, "expired_token", audit.EventTokenExpired},
	}
	for _, tc := range cases {
		auditor := &fakeAuditor{}
		h := NewBookingHandler(&fakeAdmitter{}, tc.verifier, auditor, nil)

		headers := map[string]string{}
		if tc.token != "" {
			headers[TokenHeader] = tc.token
		}
		rw := postBooking(h, `{"consultant_id":"c-1"}`, headers)

		if rw.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", tc.name, rw.Code)
			continue
		}
		var resp errorEnvelope
		if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
			t.Errorf("%s: invalid body: %v", tc.name, err)
			continue
		}
		if resp.Error.Code != tc.wantCode {
			t.Errorf("%s: expected code %q, got %q", tc.name, tc.wantCode, resp.Error.Code)
		}
		if len(auditor.events) != 1 || auditor.events[0] != tc.wantEvent {
			t.Errorf("%s: expected audit %q, got %v", tc.name, tc.wantEvent, auditor.events)
		}
	}
}

func TestBookingCreate_AdmissionErrorMapping(t *testing.T) {
	v := testVerifier()

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{admission.ErrInvalidName, http.StatusBadRequest, "invalid_name"},
		{admission.ErrInvalidEmail, http.StatusBadRequest, "invalid_email"},
		{admission.ErrConsultantNotFound, http.StatusBadRequest, "invalid_consultant"},
		{admission.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
		{admission.ErrPastDate, http.StatusBadRequest, "past_date"},
		{admission.ErrDateTooFar, http.StatusBadRequest, "date_too_far"},
		{admission.ErrInvalidTime, http.StatusBadRequest, "invalid_time"},
		{admission.ErrNoAvailability, http.StatusBadRequest, "no_availability"},
		{admission.ErrOutsideHours, http.StatusBadRequest, "outside_hours"},
		{admission.ErrSlotTaken, http.StatusConflict, "slot_taken"},
	}
	for _, tc := range cases {
		auditor := &fakeAuditor{}
		h := NewBookingHandler(&fakeAdmitter{err: tc.err}, v, auditor, nil)

		rw := postBooking(h, `{"consultant_id":"c-1"}`, map[string]string{TokenHeader: v.Generate()})
		if rw.Code != tc.wantStatus {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.wantStatus, rw.Code)
			continue
		}
		var resp errorEnvelope
		if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
			t.Errorf("%v: invalid body: %v", tc.err, err)
			continue
		}
		if resp.Error.Code != tc.wantCode {
			t.Errorf("%v: expected code %q, got %q", tc.err, tc.wantCode, resp.Error.Code)
		}
		if tc.err == admission.ErrSlotTaken {
			if len(auditor.events) != 1 || auditor.events[0] != audit.EventSlotConflict {
				t.Errorf("slot conflict should audit, got %v", auditor.events)
			}
		}
	}
}

func TestBookingCreate_InvalidJSON(t *testing.T) {
	h := NewBookingHandler(&fakeAdmitter{}, testVerifier(), &fakeAuditor{}, nil)
	rw := postBooking(h, `{not json`, nil)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestRequireAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	auditor := &fakeAuditor{}
	var reached bool
	h := RequireAdminKey(string(hash), auditor)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/admin/bookings", nil)
	req.Header.Set(AdminKeyHeader, "wrong")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized || reached {
		t.Fatalf("wrong key must be rejected, got %d", rw.Code)
	}
	if len(auditor.events) != 1 || auditor.events[0] != audit.EventAdminKeyBad {
		t.Fatalf("rejection should audit, got %v", auditor.events)
	}

	req.Header.Set(AdminKeyHeader, "s3cret")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK || !reached {
		t.Fatalf("correct key must pass, got %d", rw.Code)
	}
}
