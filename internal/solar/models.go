package solar

import (
	"fmt"
	"strings"
	"time"
)

// LocationKind classifies a registry location by administrative level.
type LocationKind string

const (
	KindNation    LocationKind = "nation"
	KindRegion    LocationKind = "region"
	KindGridPoint LocationKind = "grid_point"
)

// JoinKeyKind selects how a country keys its reading rows to locations.
type JoinKeyKind int

const (
	JoinKeyNumeric JoinKeyKind = iota
	JoinKeyText
)

// JoinKeyValue is the typed join key carried by reading rows and locations.
// Exactly one of Num/Text is meaningful, selected by Kind. The zero value is
// an empty text key and never matches anything useful.
type JoinKeyValue struct {
	Kind JoinKeyKind
	Num  int64
	Text string
}

// NumericKey builds a numeric join key (e.g. a GSP id or region id).
func NumericKey(n int64) JoinKeyValue {
	return JoinKeyValue{Kind: JoinKeyNumeric, Num: n}
}

// TextKey builds a textual join key (e.g. a region name).
func TextKey(s string) JoinKeyValue {
	return JoinKeyValue{Kind: JoinKeyText, Text: s}
}

// Normalize returns the canonical form used for matching: text keys are
// trimmed and case-folded, numeric keys are already canonical.
func (k JoinKeyValue) Normalize() JoinKeyValue {
	if k.Kind == JoinKeyText {
		k.Text = strings.ToLower(strings.TrimSpace(k.Text))
	}
	return k
}

func (k JoinKeyValue) String() string {
	if k.Kind == JoinKeyNumeric {
		return fmt.Sprintf("%d", k.Num)
	}
	return k.Text
}

// ReadingRow is one normalized reading produced by an upstream fetcher.
// All power values are in watts; unit conversion happens upstream.
type ReadingRow struct {
	TimestampUTC          time.Time
	JoinKey               JoinKeyValue
	ReportedCapacityWatts float64
	GenerationWatts       float64

	// ObserverTag carries the source regime (e.g. "in-day") for countries
	// whose observer name is derived from the data. Empty otherwise.
	ObserverTag string
}

// ReadingTable is the ordered per-run input handed to the sync engine.
type ReadingTable struct {
	Country string
	Rows    []ReadingRow
}

// Location is a registry location as seen by one run. Locations are
// re-fetched fresh on every run and never cached across runs.
type Location struct {
	ID                     string
	Name                   string
	Kind                   LocationKind
	JoinKey                JoinKeyValue
	EffectiveCapacityWatts int64

	// Country is the country tag from location metadata. Empty for
	// locations created before tagging existed.
	Country string
}

// JoinedReading pairs a reading row with its matched location.
type JoinedReading struct {
	Row      ReadingRow
	Location Location
}

// CapacityUpdateCommand records one capacity write for a location. The
// engine emits at most one per location per run, always carrying the
// reported capacity at the latest drifting timestamp.
type CapacityUpdateCommand struct {
	LocationID       string
	NewCapacityWatts int64
	ValidFrom        time.Time
}

// ObservationValue is a single (timestamp, watts) point.
type ObservationValue struct {
	TimestampUTC time.Time
	ValueWatts   float64
}

// ObservationBatch groups a location's matched readings for one write.
type ObservationBatch struct {
	LocationID string
	Values     []ObservationValue
}
