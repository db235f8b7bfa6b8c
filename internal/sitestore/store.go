// Package sitestore is the direct-to-database write path for the site
// datamodel: plain inserts plus a scalar capacity bump, with no registry
// reconciliation. It exists alongside the registry path and shares the
// same normalized reading tables.
package sitestore

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gridsight/solar-consumer/internal/solar"
)

// nlCapacityTolerance bounds how far the sum of the Dutch regional
// capacities may deviate from the national capacity (0.1%, ~30 MW).
const nlCapacityTolerance = 0.001

// capacityBumpThresholdKW is the minimum difference before a stored site
// capacity is rewritten.
const capacityBumpThresholdKW = 1.0

// DataIntegrityError means a pre-write cross-check failed; the write was
// aborted before any row was persisted.
type DataIntegrityError struct {
	Country       string
	Timestamp     time.Time
	NationalKW    float64
	RegionalSumKW float64
	Tolerance     float64
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf(
		"capacity cross-check failed for %s at %s: national %.0f kW, regional sum %.0f kW (tolerance %.4f)",
		e.Country, e.Timestamp.Format(time.RFC3339), e.NationalKW, e.RegionalSumKW, e.Tolerance,
	)
}

// Site is one client site row. Capacity is stored in kW, matching the
// site datamodel rather than the registry's watts.
type Site struct {
	LocationUUID   string `gorm:"primaryKey"`
	ClientSiteName string `gorm:"uniqueIndex"`
	Country        string
	Latitude       float64
	Longitude      float64
	CapacityKW     float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GenerationValue is one persisted generation reading.
type GenerationValue struct {
	ID       uint   `gorm:"primaryKey"`
	SiteUUID string `gorm:"index"`
	StartUTC time.Time
	PowerKW  float64
}

// Store wraps the site database.
type Store struct {
	db *gorm.DB
}

// Open connects to a postgres site database and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open site db: %w", err)
	}
	return newStore(db)
}

// OpenSQLite connects to a sqlite site database (local runs and tests).
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open site db: %w", err)
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Site{}, &GenerationValue{}); err != nil {
		return nil, fmt.Errorf("migrate site db: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveGeneration writes a reading table for one country into the site
// database: one site per seed entry, matched on the join key. The NL
// cross-check runs first and aborts the whole write on failure.
func (s *Store) SaveGeneration(profile solar.CountryProfile, table solar.ReadingTable) error {
	if len(table.Rows) == 0 {
		log.Println("sitestore: no generation data provided to save")
		return nil
	}

	if profile.Code == "nl" {
		if err := validateNLCapacities(table.Rows, nlCapacityTolerance); err != nil {
			return err
		}
	}

	if profile.SeedCatalog == "" {
		return fmt.Errorf("sitestore: country %q has no site catalog", profile.Code)
	}
	catalog, err := solar.LoadSeedCatalog(profile.SeedCatalog)
	if err != nil {
		return err
	}

	for _, entry := range catalog.Entries {
		key, err := entry.Key(profile.JoinKeyKind)
		if err != nil {
			return err
		}
		normalized := key.Normalize()

		var rows []solar.ReadingRow
		for _, row := range table.Rows {
			if row.JoinKey.Normalize() == normalized {
				rows = append(rows, row)
			}
		}
		if len(rows) == 0 {
			continue
		}

		// Highest reported capacity in this batch, in kW.
		var maxCapacityKW float64
		for _, row := range rows {
			if kw := row.ReportedCapacityWatts / 1000; kw > maxCapacityKW {
				maxCapacityKW = kw
			}
		}

		site, err := s.getOrCreateSite(entry, profile, maxCapacityKW)
		if err != nil {
			return err
		}

		values := make([]GenerationValue, 0, len(rows))
		for _, row := range rows {
			values = append(values, GenerationValue{
				SiteUUID: site.LocationUUID,
				StartUTC: row.TimestampUTC,
				PowerKW:  row.GenerationWatts / 1000,
			})
		}
		if err := s.db.Create(&values).Error; err != nil {
			return fmt.Errorf("insert generation for %q: %w", site.ClientSiteName, err)
		}

		if err := s.updateCapacity(site, maxCapacityKW); err != nil {
			return err
		}
		log.Printf("sitestore: saved %d rows for %q", len(values), site.ClientSiteName)
	}

	return nil
}

// getOrCreateSite fetches a site by client name, creating it with the seed
// metadata when missing. capacityKW overrides the seed capacity when the
// data reports one.
func (s *Store) getOrCreateSite(entry solar.SeedEntry, profile solar.CountryProfile, capacityKW float64) (*Site, error) {
	var site Site
	err := s.db.Where("client_site_name = ?", entry.Name).First(&site).Error
	if err == nil {
		return &site, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("read site %q: %w", entry.Name, err)
	}

	if capacityKW <= 0 {
		if entry.CapacityWatts > 0 {
			capacityKW = float64(entry.CapacityWatts) / 1000
		} else {
			capacityKW = float64(profile.DefaultCapacityWatts) / 1000
		}
	}

	site = Site{
		LocationUUID:   uuid.NewString(),
		ClientSiteName: entry.Name,
		Country:        profile.Code,
		CapacityKW:     capacityKW,
	}
	if entry.HasCoordinates() {
		site.Latitude = *entry.Latitude
		site.Longitude = *entry.Longitude
	}

	log.Printf("sitestore: creating site %q", entry.Name)
	if err := s.db.Create(&site).Error; err != nil {
		return nil, fmt.Errorf("create site %q: %w", entry.Name, err)
	}
	return &site, nil
}

// updateCapacity rewrites the stored capacity when the reported one moved
// by at least a kilowatt, so the database always reflects the latest
// observed capacity.
func (s *Store) updateCapacity(site *Site, capacityKW float64) error {
	if capacityKW <= 0 || math.Abs(capacityKW-site.CapacityKW) < capacityBumpThresholdKW {
		return nil
	}

	old := site.CapacityKW
	site.CapacityKW = capacityKW
	if err := s.db.Model(site).Update("capacity_kw", capacityKW).Error; err != nil {
		return fmt.Errorf("update capacity for %q: %w", site.ClientSiteName, err)
	}
	log.Printf("sitestore: updated site %q capacity from %.0f to %.0f kW", site.ClientSiteName, old, capacityKW)
	return nil
}

// validateNLCapacities checks, per timestamp, that the regional capacities
// sum to the national one within tolerance. Timestamps with no national or
// no regional rows are skipped; a zero national capacity always fails.
func validateNLCapacities(rows []solar.ReadingRow, tolerance float64) error {
	type bucket struct {
		ts          time.Time
		nationalKW  float64
		hasNational bool
		regionalKW  float64
		hasRegional bool
	}

	buckets := make(map[int64]*bucket)
	for _, row := range rows {
		b, ok := buckets[row.TimestampUTC.Unix()]
		if !ok {
			b = &bucket{ts: row.TimestampUTC}
			buckets[row.TimestampUTC.Unix()] = b
		}

		kw := row.ReportedCapacityWatts / 1000
		if row.JoinKey.Kind == solar.JoinKeyNumeric && row.JoinKey.Num == 0 {
			b.nationalKW = kw
			b.hasNational = true
		} else {
			b.regionalKW += kw
			b.hasRegional = true
		}
	}

	for _, b := range buckets {
		if !b.hasNational {
			log.Printf("sitestore: missing national capacity at %s, skipping validation", b.ts.Format(time.RFC3339))
			continue
		}
		if !b.hasRegional {
			log.Printf("sitestore: no regional rows at %s, skipping validation", b.ts.Format(time.RFC3339))
			continue
		}

		fail := &DataIntegrityError{
			Country:       "nl",
			Timestamp:     b.ts,
			NationalKW:    b.nationalKW,
			RegionalSumKW: b.regionalKW,
			Tolerance:     tolerance,
		}
		if b.nationalKW == 0 {
			return fail
		}
		ratio := b.regionalKW / b.nationalKW
		if ratio >= 1+tolerance || ratio <= 1-tolerance {
			return fail
		}
	}

	return nil
}
