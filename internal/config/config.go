package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Save methods select which write paths a run uses.
const (
	SaveMethodRegistry = "registry"
	SaveMethodSiteDB   = "site-db"
	SaveMethodBoth     = "both"
)

type AppConfig struct {
	// RegistryURL is the base URL of the data registry.
	RegistryURL string `validate:"required,url"`

	// Countries to ingest each interval.
	Countries []string `validate:"min=1,dive,oneof=gb nl be de"`

	// DefaultCountry owns registry locations that predate country tagging.
	DefaultCountry string `validate:"required,len=2"`

	// FetchInterval controls how often the ingest job runs.
	FetchInterval time.Duration

	// DriftTolerance is the relative capacity mismatch ignored by the
	// reconciler. Zero selects the engine default.
	DriftTolerance float64 `validate:"gte=0,lt=1"`

	SaveMethod string `validate:"oneof=registry site-db both"`

	// SiteDBURL is required for the site-db save method. A postgres DSN,
	// or a plain path for sqlite.
	SiteDBURL string

	NedAPIKey      string
	EntsoeAPIKey   string
	PVLiveRegime   string `validate:"oneof=in-day day-after"`
	GeocoderAPIKey string

	HTTPTimeout time.Duration
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.RegistryURL = getenvDefault("REGISTRY_URL", "http://localhost:8090")
	cfg.DefaultCountry = getenvDefault("DEFAULT_COUNTRY", "gb")
	cfg.SaveMethod = getenvDefault("SAVE_METHOD", SaveMethodRegistry)
	cfg.SiteDBURL = os.Getenv("SITE_DB_URL")
	cfg.NedAPIKey = os.Getenv("NED_API_KEY")
	cfg.EntsoeAPIKey = os.Getenv("ENTSOE_API_KEY")
	cfg.PVLiveRegime = getenvDefault("PVLIVE_REGIME", "in-day")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.Port = getenvDefault("PORT", "8080")

	for _, c := range strings.Split(getenvDefault("COUNTRIES", "gb"), ",") {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			cfg.Countries = append(cfg.Countries, c)
		}
	}

	intervalStr := getenvDefault("FETCH_INTERVAL", "15m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	// The scheduler runs on whole minutes; anything shorter would
	// silently truncate to zero.
	if interval < time.Minute {
		return nil, fmt.Errorf("FETCH_INTERVAL %s is below the one-minute minimum", interval)
	}
	cfg.FetchInterval = interval

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.DriftTolerance = getenvFloat("CAPACITY_DRIFT_TOLERANCE", 0)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.SaveMethod != SaveMethodRegistry && cfg.SiteDBURL == "" {
		return nil, fmt.Errorf("SITE_DB_URL is required for save method %q", cfg.SaveMethod)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
