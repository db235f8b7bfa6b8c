package ingest

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gridsight/solar-consumer/internal/registry"
	"github.com/gridsight/solar-consumer/internal/solar"
)

// seedValidFrom is the fixed historical start applied to every
// bootstrapped location.
var seedValidFrom = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// GeocodeFunc resolves a place name to coordinates. Only consulted for
// seed entries that carry no coordinates of their own.
type GeocodeFunc func(name, countryCode string) (lat, lon float64, err error)

// Catalog resolves the registry locations relevant to a country and
// bootstraps defaults from the country's seed catalog when none exist.
// Locations are fetched fresh on every run; nothing is cached here.
type Catalog struct {
	reg registry.Registry

	// DefaultCountry is the one country whose locations predate country
	// tagging; a location with no tag is treated as belonging to it.
	// Kept as explicit configuration rather than a hard-coded branch.
	DefaultCountry string

	geocode GeocodeFunc
}

// NewCatalog builds a catalog. geocode may be nil.
func NewCatalog(reg registry.Registry, defaultCountry string, geocode GeocodeFunc) *Catalog {
	return &Catalog{reg: reg, DefaultCountry: defaultCountry, geocode: geocode}
}

// Resolve returns the locations for the profile's country. When the
// registry holds none and the country has a seed catalog, the seeds are
// created and the query repeated. An empty result after that is not an
// error: the run proceeds as a no-op.
func (c *Catalog) Resolve(ctx context.Context, profile solar.CountryProfile) ([]solar.Location, error) {
	locations, err := c.query(ctx, profile)
	if err != nil {
		return nil, err
	}

	if len(locations) == 0 && profile.SeedCatalog != "" {
		if err := c.bootstrap(ctx, profile); err != nil {
			return nil, err
		}
		locations, err = c.query(ctx, profile)
		if err != nil {
			return nil, err
		}
	}

	return locations, nil
}

// query lists locations of every kind the profile cares about, filters by
// country tag, and lifts the typed join key out of the metadata map.
func (c *Catalog) query(ctx context.Context, profile solar.CountryProfile) ([]solar.Location, error) {
	var locations []solar.Location

	for _, kind := range profile.LocationKinds {
		summaries, err := c.reg.ListLocations(ctx, kind, registry.EnergySourceSolarPV)
		if err != nil {
			return nil, &TransportError{Phase: "location-resolution", Err: err}
		}

		for _, s := range summaries {
			country, tagged := metadataString(s.Metadata, registry.MetadataCountryKey)
			if tagged {
				if country != profile.Code {
					continue
				}
			} else if c.DefaultCountry != profile.Code {
				continue
			}

			key, ok := metadataJoinKey(s.Metadata, profile.JoinKeyName, profile.JoinKeyKind)
			if !ok {
				log.Printf("ingest: location %q has no %q metadata; skipping", s.Name, profile.JoinKeyName)
				continue
			}

			locations = append(locations, solar.Location{
				ID:                     s.ID,
				Name:                   s.Name,
				Kind:                   s.Kind,
				JoinKey:                key,
				EffectiveCapacityWatts: s.EffectiveCapacityWatts,
				Country:                country,
			})
		}
	}

	return locations, nil
}

// bootstrap creates every entry of the profile's seed catalog.
func (c *Catalog) bootstrap(ctx context.Context, profile solar.CountryProfile) error {
	catalog, err := solar.LoadSeedCatalog(profile.SeedCatalog)
	if err != nil {
		return err
	}

	log.Printf("ingest: no locations for %q; bootstrapping %d seed entries", profile.Code, len(catalog.Entries))

	for _, entry := range catalog.Entries {
		key, err := entry.Key(profile.JoinKeyKind)
		if err != nil {
			return err
		}

		lat, lon, err := c.seedCoordinates(entry, profile.Code)
		if err != nil {
			return err
		}

		capacity := entry.CapacityWatts
		if capacity == 0 {
			capacity = profile.DefaultCapacityWatts
		}

		metadata := map[string]any{
			registry.MetadataCountryKey: profile.Code,
		}
		if profile.JoinKeyKind == solar.JoinKeyNumeric {
			metadata[profile.JoinKeyName] = key.Num
		} else {
			metadata[profile.JoinKeyName] = key.Text
		}

		_, err = c.reg.CreateLocation(ctx, registry.CreateLocationParams{
			Name:                 entry.Name,
			Kind:                 entry.LocationKindOrDefault(),
			EnergySource:         registry.EnergySourceSolarPV,
			GeometryWKT:          fmt.Sprintf("POINT(%g %g)", lon, lat),
			InitialCapacityWatts: capacity,
			Metadata:             metadata,
			ValidFrom:            seedValidFrom,
		})
		if err != nil {
			return &TransportError{Phase: "location-bootstrap", Err: err}
		}
	}

	return nil
}

func (c *Catalog) seedCoordinates(entry solar.SeedEntry, countryCode string) (float64, float64, error) {
	if entry.HasCoordinates() {
		return *entry.Latitude, *entry.Longitude, nil
	}
	if c.geocode == nil {
		log.Printf("ingest: seed %q has no coordinates and no geocoder is configured", entry.Name)
		return 0, 0, nil
	}
	lat, lon, err := c.geocode(entry.Name, countryCode)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode seed %q: %w", entry.Name, err)
	}
	return lat, lon, nil
}

func metadataString(metadata map[string]any, key string) (string, bool) {
	v, ok := metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// metadataJoinKey lifts the profile's join key out of the loosely-typed
// metadata map. JSON decoding hands numbers over as float64; older entries
// may carry them as strings.
func metadataJoinKey(metadata map[string]any, name string, kind solar.JoinKeyKind) (solar.JoinKeyValue, bool) {
	v, ok := metadata[name]
	if !ok {
		return solar.JoinKeyValue{}, false
	}

	if kind == solar.JoinKeyText {
		s, ok := v.(string)
		if !ok {
			return solar.JoinKeyValue{}, false
		}
		return solar.TextKey(s), true
	}

	switch n := v.(type) {
	case float64:
		return solar.NumericKey(int64(n)), true
	case int64:
		return solar.NumericKey(n), true
	case int:
		return solar.NumericKey(int64(n)), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return solar.JoinKeyValue{}, false
		}
		return solar.NumericKey(parsed), true
	default:
		return solar.JoinKeyValue{}, false
	}
}
