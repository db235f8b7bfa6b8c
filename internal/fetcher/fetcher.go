// Package fetcher holds the per-source collaborators that poll a national
// energy-data API and hand the engine a normalized reading table. All
// power values leave this package in watts; unit conversion from each
// source's native unit (kW, MW, MWp) happens here and nowhere else.
package fetcher

import (
	"context"

	"github.com/gridsight/solar-consumer/internal/solar"
)

// Fetcher is one national data source.
type Fetcher interface {
	Country() string
	Fetch(ctx context.Context) (solar.ReadingTable, error)
}
