package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/an-orlov/consultbooking/libs/config"
	"github.com/an-orlov/consultbooking/libs/db"
	"github.com/an-orlov/consultbooking/libs/httpx"
	"github.com/an-orlov/consultbooking/libs/kafkax"
	otelx "github.com/an-orlov/consultbooking/libs/otel"
	"github.com/an-orlov/consultbooking/libs/runtime"
	"github.com/an-orlov/consultbooking/services/notification-service/internal/consumer"
	"github.com/an-orlov/consultbooking/services/notification-service/internal/email"
	"github.com/an-orlov/consultbooking/services/notification-service/internal/inbox"
	"github.com/an-orlov/consultbooking/services/notification-service/internal/storage"
	"github.com/an-orlov/consultbooking/services/notification-service/internal/webhook"
)

type bookingPayload struct {
	BookingRef         string `json:"booking_ref"`
	ConsultantPublicID string `json:"consultant_public_id"`
	ConsultantName     string `json:"consultant_name"`
	ConsultantEmail    string `json:"consultant_email"`
	CustomerName       string `json:"customer_name"`
	CustomerEmail      string `json:"customer_email"`
	BookingDate        string `json:"booking_date"`
	BookingTime        string `json:"booking_time"`
	OldStatus          string `json:"old_status"`
	NewStatus          string `json:"new_status"`
}

type dispatcher struct {
	email  email.Sender
	hooks  *webhook.Sender
	log    *storage.Repository
	logger *slog.Logger
}

func (d *dispatcher) record(ctx context.Context, n storage.Notification) {
	if err := d.log.Insert(ctx, n); err != nil {
		d.logger.Error("failed to persist notification", "err", err, "booking_ref", n.BookingRef)
	}
}

// sendEmail delivers one message and records the attempt. Delivery trouble
// never propagates: the booking already exists, the customer keeps it.
func (d *dispatcher) sendEmail(ctx context.Context, eventType, to, subject, body, bookingRef string, detail map[string]any) {
	n := storage.Notification{
		BookingRef: bookingRef,
		EventType:  eventType,
		Channel:    storage.ChannelEmail,
		Recipient:  to,
		Payload:    detail,
		Status:     storage.StatusSent,
	}
	if err := d.email.Send(to, subject, body); err != nil {
		d.logger.Error("email send failed", "err", err, "recipient", to)
		n.Status = storage.StatusFailed
		n.Error = err.Error()
	}
	d.record(ctx, n)
}

func (d *dispatcher) sendWebhooks(ctx context.Context, eventType string, raw []byte, bookingRef string, detail map[string]any) {
	if !d.hooks.Configured() {
		return
	}
	n := storage.Notification{
		BookingRef: bookingRef,
		EventType:  eventType,
		Channel:    storage.ChannelWebhook,
		Recipient:  "subscribers",
		Payload:    detail,
		Status:     storage.StatusSent,
	}
	if err := d.hooks.Send(ctx, eventType, raw); err != nil {
		d.logger.Error("webhook delivery failed", "err", err, "event", eventType)
		n.Status = storage.StatusFailed
		n.Error = err.Error()
	}
	d.record(ctx, n)
}

func (d *dispatcher) handleSlotReserved(ctx context.Context, msg kafka.Message) error {
	var p bookingPayload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		d.logger.Error("invalid slot.reserved payload", "err", err)
		return nil
	}
	if p.BookingRef == "" || p.CustomerEmail == "" {
		d.logger.Error("missing slot.reserved fields", "booking_ref", p.BookingRef)
		return nil
	}
	detail := map[string]any{"date": p.BookingDate, "time": p.BookingTime}

	d.sendEmail(ctx, msg.Topic, p.CustomerEmail,
		"Your booking request was received",
		fmt.Sprintf("Hi %s,\n\nyour booking with %s on %s at %s was received and is awaiting confirmation.\nReference: %s\n",
			p.CustomerName, p.ConsultantName, p.BookingDate, p.BookingTime, p.BookingRef),
		p.BookingRef, detail)

	if p.ConsultantEmail != "" {
		d.sendEmail(ctx, msg.Topic, p.ConsultantEmail,
			"New booking request",
			fmt.Sprintf("%s (%s) requested %s at %s.\nReference: %s\n",
				p.CustomerName, p.CustomerEmail, p.BookingDate, p.BookingTime, p.BookingRef),
			p.BookingRef, detail)
	}

	d.sendWebhooks(ctx, msg.Topic, msg.Value, p.BookingRef, detail)
	return nil
}

func (d *dispatcher) handleStatusChanged(ctx context.Context, msg kafka.Message) error {
	var p bookingPayload
	if err := json.Unmarshal(msg.Value, &p); err != nil {
		d.logger.Error("invalid status.changed payload", "err", err)
		return nil
	}
	if p.BookingRef == "" || p.NewStatus == "" {
		d.logger.Error("missing status.changed fields", "booking_ref", p.BookingRef)
		return nil
	}
	detail := map[string]any{"old_status": p.OldStatus, "new_status": p.NewStatus}

	var subject, line string
	switch p.NewStatus {
	case "confirmed":
		subject = "Your booking is confirmed"
		line = "has been confirmed."
	case "cancelled", "storno":
		subject = "Your booking was cancelled"
		line = "has been cancelled. The slot is available again."
	default:
		subject = "Your booking was updated"
		line = fmt.Sprintf("is now %q.", p.NewStatus)
	}
	if p.CustomerEmail != "" {
		d.sendEmail(ctx, msg.Topic, p.CustomerEmail, subject,
			fmt.Sprintf("Hi %s,\n\nyour booking on %s at %s %s\nReference: %s\n",
				p.CustomerName, p.BookingDate, p.BookingTime, line, p.BookingRef),
			p.BookingRef, detail)
	}

	d.sendWebhooks(ctx, msg.Topic, msg.Value, p.BookingRef, detail)
	return nil
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var sender email.Sender = email.NoopSender{}
	if host := config.String("SMTP_HOST", ""); host != "" {
		sender = email.NewSMTPSender(host, config.String("SMTP_PORT", "1025"), config.String("SMTP_FROM", ""))
	} else {
		logger.Warn("SMTP_HOST not set; email delivery disabled")
	}

	d := &dispatcher{
		email:  sender,
		hooks:  webhook.NewSender(config.String("WEBHOOK_URLS", ""), config.String("WEBHOOK_SECRET", "")),
		log:    storage.NewRepository(pool),
		logger: logger,
	}

	inboxRepo := inbox.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	reservedConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_TOPIC_SLOT_RESERVED", "booking.slot.reserved.v1"),
	}, d.handleSlotReserved)
	go reservedConsumer.Run(ctx)

	statusConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_TOPIC_STATUS_CHANGED", "booking.status.changed.v1"),
	}, d.handleStatusChanged)
	go statusConsumer.Run(ctx)

	// Schedule changes only matter to webhook subscribers (calendar syncs);
	// nobody gets mailed about them.
	availabilityConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_TOPIC_AVAILABILITY_UPDATED", "consultant.availability.updated.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		d.sendWebhooks(ctx, msg.Topic, msg.Value, "", nil)
		return nil
	})
	go availabilityConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
