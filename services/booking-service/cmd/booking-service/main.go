package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/an-orlov/consultbooking/libs/config"
	"github.com/an-orlov/consultbooking/libs/db"
	"github.com/an-orlov/consultbooking/libs/httpx"
	"github.com/an-orlov/consultbooking/libs/kafkax"
	otelx "github.com/an-orlov/consultbooking/libs/otel"
	"github.com/an-orlov/consultbooking/libs/runtime"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/admission"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/audit"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/cache"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/handlers"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/outbox"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/storage"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/token"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
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
	adminKeyHash, err := config.RequiredString("ADMIN_KEY_BCRYPT")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	// Redis backs both the slot cache and the rate limiter; without it a
	// single instance falls back to in-memory limiting and no cache.
	var slotCache cache.Cache = cache.Noop{}
	var limiter httpx.RateLimiter = httpx.NewMemoryRateLimiter(
		config.Int("RATE_LIMIT", 60),
		config.Duration("RATE_WINDOW", time.Minute),
	)
	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: config.String("REDIS_PASSWORD", "")})
		defer rdb.Close()
		slotCache = cache.NewRedis(rdb, logger)
		limiter = httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT", 60),
			config.Duration("RATE_WINDOW", time.Minute),
			service,
		)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.ReadyCheck(rdb)})
	}

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}

	outboxRepo := outbox.NewRepository(pool)
	consultants := storage.NewConsultantRepository(pool)
	windows := storage.NewAvailabilityRepository(pool, outboxRepo)
	bookings := storage.NewBookingRepository(pool, outboxRepo)
	auditor := audit.NewRecorder(pool, config.String("AUDIT_SALT", service), logger)
	tokens := token.NewVerifier(config.String("FORM_TOKEN_SECRET", ""), config.Duration("FORM_TOKEN_MAX_AGE", 5*time.Minute))
	if !tokens.Enabled() {
		logger.Warn("FORM_TOKEN_SECRET not set; form token checks disabled")
	}

	controller := admission.NewController(consultants, windows, bookings, slotCache, config.Int("MAX_ADVANCE_DAYS", 90))

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	slotCfg := handlers.SlotConfig{
		DurationMinutes: config.Int("SLOT_DURATION_MINUTES", 60),
		BufferMinutes:   config.Int("SLOT_BUFFER_MINUTES", 0),
		CacheTTL:        config.Duration("SLOT_CACHE_TTL", time.Minute),
	}
	availabilityHandler := handlers.NewAvailabilityHandler(consultants, windows, bookings, slotCache, controller, tokens, logger, slotCfg)
	bookingHandler := handlers.NewBookingHandler(controller, tokens, auditor, logger)
	adminHandler := handlers.NewAdminHandler(consultants, windows, bookings, slotCache, logger)

	rateLimit := httpx.WithRateLimit(limiter, logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	public := func(h http.HandlerFunc) http.Handler {
		return rateLimit(h)
	}
	adminOnly := handlers.RequireAdminKey(adminKeyHash, auditor)
	admin := func(h http.HandlerFunc) http.Handler {
		return adminOnly(h)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/api/v1/public/availability", public(availabilityHandler.Get))
	mux.Handle("/api/v1/public/bookings", public(bookingHandler.Create))
	mux.Handle("/api/v1/admin/consultants", admin(adminHandler.Consultants))
	mux.Handle("/api/v1/admin/consultants/active", admin(adminHandler.ConsultantActive))
	mux.Handle("/api/v1/admin/availability", admin(adminHandler.Availability))
	mux.Handle("/api/v1/admin/bookings", admin(adminHandler.Bookings))
	mux.Handle("/api/v1/admin/bookings/status", admin(adminHandler.BookingStatus))

	// The public endpoints are called from the booking widget's origin.
	var corsOrigins []string
	if raw := config.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		corsOrigins = strings.Split(raw, ",")
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", handlers.TokenHeader},
			MaxAge:         time.Hour,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
