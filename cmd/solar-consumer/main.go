package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	httpapi "github.com/gridsight/solar-consumer/internal/api/http"
	"github.com/gridsight/solar-consumer/internal/config"
	"github.com/gridsight/solar-consumer/internal/fetcher"
	"github.com/gridsight/solar-consumer/internal/ingest"
	"github.com/gridsight/solar-consumer/internal/registry"
	"github.com/gridsight/solar-consumer/internal/scheduler"
	"github.com/gridsight/solar-consumer/internal/sitestore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for all outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Registry client, owned here and injected into the engine.
	reg := registry.NewClient(httpClient, cfg.RegistryURL)

	// Geocoder for seed entries without coordinates, when a key is set.
	var geocode ingest.GeocodeFunc
	if cfg.GeocoderAPIKey != "" {
		geocode = ingest.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}

	catalog := ingest.NewCatalog(reg, cfg.DefaultCountry, geocode)
	orchestrator := ingest.NewOrchestrator(reg, catalog, cfg.DriftTolerance)
	tracker := ingest.NewReportTracker()

	// Optional direct site-database write path.
	var sites *sitestore.Store
	if cfg.SaveMethod != config.SaveMethodRegistry {
		if strings.HasPrefix(cfg.SiteDBURL, "postgres") {
			sites, err = sitestore.Open(cfg.SiteDBURL)
		} else {
			sites, err = sitestore.OpenSQLite(cfg.SiteDBURL)
		}
		if err != nil {
			log.Fatalf("failed to open site database: %v", err)
		}
	}

	// One fetcher per configured country.
	var fetchers []fetcher.Fetcher
	for _, country := range cfg.Countries {
		switch country {
		case "gb":
			fetchers = append(fetchers, fetcher.NewPVLiveFetcher(httpClient, cfg.PVLiveRegime, nil))
		case "nl":
			fetchers = append(fetchers, fetcher.NewNedFetcher(httpClient, cfg.NedAPIKey))
		case "be":
			fetchers = append(fetchers, fetcher.NewEliaFetcher(httpClient))
		case "de":
			f, err := fetcher.NewEntsoeFetcher(httpClient, cfg.EntsoeAPIKey)
			if err != nil {
				log.Fatalf("failed to build entsoe fetcher: %v", err)
			}
			fetchers = append(fetchers, f)
		default:
			log.Printf("no fetcher implemented for %q; skipping", country)
		}
	}

	saveRegistry := cfg.SaveMethod != config.SaveMethodSiteDB
	sched := scheduler.New(fetchers, orchestrator, sites, saveRegistry, tracker, cfg.FetchInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "solar-consumer",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "solar-consumer",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, tracker, sched.RunOnce)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
