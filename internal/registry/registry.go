// Package registry speaks to the external service of record for
// locations, capacities and observation time series. The engine only
// depends on the Registry interface; the HTTP client is injected by the
// caller and owns its own lifetime.
package registry

import (
	"context"
	"time"

	"github.com/gridsight/solar-consumer/internal/solar"
)

// EnergySourceSolarPV is the only energy source this consumer writes.
const EnergySourceSolarPV = "solar_pv"

// Metadata keys the consumer reads and writes on locations.
const (
	MetadataCountryKey = "country"
)

// LocationSummary is a registry location as returned by ListLocations.
// Metadata is the registry's free-form key/value map; the catalog lifts
// the join key and country tag out of it into typed fields.
type LocationSummary struct {
	ID                     string             `json:"location_id"`
	Name                   string             `json:"name"`
	Kind                   solar.LocationKind `json:"kind"`
	EffectiveCapacityWatts int64              `json:"effective_capacity_watts"`
	Metadata               map[string]any     `json:"metadata"`
}

// CreateLocationParams carries everything needed to create one location.
type CreateLocationParams struct {
	Name                 string
	Kind                 solar.LocationKind
	EnergySource         string
	GeometryWKT          string
	InitialCapacityWatts int64
	Metadata             map[string]any
	ValidFrom            time.Time
}

// ObservationValue is one point of an observation write.
type ObservationValue struct {
	TimestampUTC time.Time `json:"timestamp_utc"`
	ValueWatts   float64   `json:"value_watts"`
}

// Registry is the capability surface the sync engine consumes. Every call
// is an independent suspension point; implementations own retry/backoff.
type Registry interface {
	// ListObservers returns the subset of names that already exist.
	ListObservers(ctx context.Context, names []string) ([]string, error)

	// CreateObserver registers a named observer.
	CreateObserver(ctx context.Context, name string) error

	// ListLocations returns all locations of a kind for an energy source.
	ListLocations(ctx context.Context, kind solar.LocationKind, energySource string) ([]LocationSummary, error)

	// CreateLocation creates a location and returns its registry-owned id.
	CreateLocation(ctx context.Context, p CreateLocationParams) (string, error)

	// UpdateLocationCapacity records a new effective capacity from validFrom.
	UpdateLocationCapacity(ctx context.Context, locationID, energySource string, newCapacityWatts int64, validFrom time.Time) error

	// CreateObservations writes a batch of values under an observer.
	CreateObservations(ctx context.Context, locationID, energySource, observerName string, values []ObservationValue) error
}
