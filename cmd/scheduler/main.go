package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/housewhisper/scheduler/internal/availability"
	"github.com/housewhisper/scheduler/internal/handlers"
	"github.com/housewhisper/scheduler/internal/ics"
	"github.com/housewhisper/scheduler/internal/outbox"
	"github.com/housewhisper/scheduler/internal/storage"
	"github.com/housewhisper/scheduler/libs/config"
	"github.com/housewhisper/scheduler/libs/db"
	"github.com/housewhisper/scheduler/libs/httpx"
	"github.com/housewhisper/scheduler/libs/kafkax"
	otelx "github.com/housewhisper/scheduler/libs/otel"
	"github.com/housewhisper/scheduler/libs/runtime"
)

func main() {
	// Local development keeps secrets in a .env file; absence is fine.
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "scheduler")
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.String("REDIS_ADDR", "localhost:6379"),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	defer func() { _ = rdb.Close() }()

	calendars := storage.NewCalendarStore(rdb)
	schedules := storage.NewScheduleStore(rdb)

	checks := []runtime.ReadyCheck{
		{Name: "redis", Check: storage.ReadyCheck(rdb)},
	}

	// Postgres carries the appointment ledger and outbox. Without it the
	// service still answers availability queries and books into the calendar
	// snapshot alone.
	var recorder handlers.AppointmentRecorder
	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		if err := storage.Migrate(dbURL); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository(pool)
		recorder = storage.NewAppointmentLedger(pool, outboxRepo)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   kafkaBrokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go publisher.Run(ctx)
	} else {
		logger.Warn("DATABASE_URL not set; appointment ledger and outbox disabled")
	}
	if kafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}

	seedStores(ctx, logger, calendars, schedules)

	availabilityHandler := handlers.NewAvailabilityHandler(calendars, schedules, logger)
	appointmentsHandler := handlers.NewAppointmentsHandler(calendars, recorder, logger)
	scheduleHandler := handlers.NewScheduleHandler(schedules, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.HandleFunc("/api/availability", availabilityHandler.Search)
	mux.HandleFunc("/api/availability/optimal-days", availabilityHandler.OptimalDays)
	mux.Handle("/api/appointments", appointmentsHandler)
	mux.Handle("/api/schedule", scheduleHandler)

	var limit httpx.Middleware
	if config.String("RATE_LIMIT_BACKEND", "redis") == "memory" {
		limit = httpx.NewMemoryRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 60), time.Minute).Middleware()
	} else {
		rl := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 60), time.Minute,
			config.String("RATE_LIMIT_PREFIX", "rl"))
		limit = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
	}

	handler := httpx.Chain(mux,
		httpx.WithRecovery(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id")),
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
		limit,
	)
	handler = otelhttp.NewHandler(handler, "scheduler")

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

// seedStores installs an initial calendar snapshot and work schedule for one
// client/agent pair when seed files are configured and the keys are empty.
func seedStores(ctx context.Context, logger *slog.Logger, calendars *storage.CalendarStore, schedules *storage.ScheduleStore) {
	key := storage.Key{
		ClientID: config.String("SEED_CLIENT_ID", "1"),
		AgentID:  config.String("SEED_AGENT_ID", "1"),
	}

	if path := config.String("CALENDAR_SEED_FILE", ""); path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			logger.Error("calendar seed unreadable", "path", path, "err", err)
		} else if _, err := ics.Decode(payload); err != nil {
			logger.Error("calendar seed is not a valid calendar", "path", path, "err", err)
		} else if err := calendars.SeedIfAbsent(ctx, key, payload); err != nil {
			logger.Error("calendar seed failed", "key", key.String(), "err", err)
		} else {
			logger.Info("calendar seeded", "key", key.String(), "path", path)
		}
	}

	if path := config.String("SCHEDULE_SEED_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Error("schedule seed unreadable", "path", path, "err", err)
			return
		}
		var ws availability.WorkSchedule
		if err := json.Unmarshal(raw, &ws); err != nil {
			logger.Error("schedule seed is not valid JSON", "path", path, "err", err)
			return
		}
		if err := schedules.SeedIfAbsent(ctx, key, ws); err != nil {
			logger.Error("schedule seed failed", "key", key.String(), "err", err)
			return
		}
		logger.Info("schedule seeded", "key", key.String(), "path", path)
	}
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
