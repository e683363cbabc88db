package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"gorm.io/gorm"

	"github.com/example/pianostore/internal/config"
	"github.com/example/pianostore/internal/database"
	"github.com/example/pianostore/internal/handlers"
	"github.com/example/pianostore/internal/metrics"
	"github.com/example/pianostore/internal/routes"
)

const (
	sweepInterval = time.Minute
	cacheIdle     = 10 * time.Minute
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	conn, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		log.Printf("[Database] Unavailable, running without payment records: %v", err)
	} else if err := database.Migrate(conn); err != nil {
		log.Fatalf("[Database] Migration failed: %v", err)
	} else {
		db = conn
	}

	appMetrics := metrics.Noop()
	var provider *sdkmetric.MeterProvider
	if cfg.MetricsEnabled {
		m, p, err := metrics.Init(ctx, cfg)
		if err != nil {
			log.Printf("[Metrics] Init failed, continuing without export: %v", err)
		} else {
			appMetrics, provider = m, p
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "Piano Store Gateway",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    32 << 20,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use("/api/auth", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
	}))

	rt := routes.Register(ctx, app, db, cfg, appMetrics)

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rt.Cache.Sweep(cacheIdle); n > 0 {
					log.Printf("[Query] Swept %d idle cache entries", n)
				}
				if n := rt.Checkouts.Sweep(); n > 0 {
					log.Printf("[Checkout] Swept %d idle checkouts", n)
				}
				appMetrics.Gauges(ctx, rt.Channels.Len(), rt.Checkouts.Len())
			}
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("fiber.Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}

	rt.Channels.CloseAll()
	if provider != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Metrics] Shutdown error: %v", err)
		}
		cancel()
	}
	if db != nil {
		if err := database.Close(db); err != nil {
			log.Printf("[Database] Close error: %v", err)
		}
	}
}
