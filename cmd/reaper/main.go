// reaper periodically deletes expired sessions store-wide. The device cap
// does not depend on it (cap checks filter on expiry), but it keeps the
// sessions table small. Tick with SESSION_CLEANUP_INTERVAL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	auditlog "school-admin/backend/internal/audit"
	auditrepo "school-admin/backend/internal/audit/repository"
	"school-admin/backend/internal/config"
	"school-admin/backend/internal/db"
	sessionrepo "school-admin/backend/internal/session/repository"
	sessionservice "school-admin/backend/internal/session/service"
	"school-admin/backend/internal/telemetry"
	"school-admin/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("reaper: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("reaper: db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "school-admin-reaper", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("reaper: otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("reaper: otel shutdown: %v", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter("school-admin.reaper"))
	if err != nil {
		log.Printf("reaper: metrics disabled: %v", err)
	}
	emitter := otel.NewEventEmitter(providers.LoggerProvider)

	svc := sessionservice.NewSessionService(
		sessionrepo.NewPostgresRepository(conn),
		auditlog.NewLogger(auditrepo.NewPostgresRepository(conn)),
		emitter,
		metrics,
		sessionservice.Config{
			MaxDevices:      cfg.MaxDevices,
			SessionDuration: cfg.SessionDurationValue(),
		},
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("reaper: shutting down...")
		cancel()
	}()

	interval := cfg.CleanupIntervalValue()
	log.Printf("reaper: cleaning expired sessions every %s", interval)

	// One pass at startup so a long interval does not delay the first sweep.
	sweep(ctx, svc)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Let in-flight async telemetry emits finish.
			time.Sleep(telemetry.ShutdownDrainDuration)
			log.Println("reaper: stopped")
			return
		case <-ticker.C:
			sweep(ctx, svc)
		}
	}
}

func sweep(ctx context.Context, svc *sessionservice.SessionService) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := svc.CleanupExpired(sweepCtx)
	if err != nil {
		log.Printf("reaper: cleanup failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("reaper: removed %d expired sessions", n)
	}
}
