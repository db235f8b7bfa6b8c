package ingest

import (
	"github.com/gridsight/solar-consumer/internal/solar"
)

// Join matches reading rows to resolved locations on the normalized join
// key. Rows with missing or non-positive capacity are discarded first;
// that filter is the only row-level skip in the engine.
//
// A valid row whose key matches no location means the registry is missing
// locations the configuration expects: that is a ConfigurationError naming
// every unmatched key, and nothing is written for the run. An input that
// was empty, or entirely non-positive-capacity, joins to nothing and that
// is the expected no-op outcome.
func Join(country string, rows []solar.ReadingRow, locations []solar.Location) ([]solar.JoinedReading, error) {
	index := make(map[solar.JoinKeyValue]solar.Location, len(locations))
	for _, loc := range locations {
		index[loc.JoinKey.Normalize()] = loc
	}

	var (
		joined       []solar.JoinedReading
		unmatched    []string
		unmatchedSet = make(map[solar.JoinKeyValue]struct{})
	)

	for _, row := range rows {
		if row.ReportedCapacityWatts <= 0 {
			continue
		}

		key := row.JoinKey.Normalize()
		loc, ok := index[key]
		if !ok {
			if _, seen := unmatchedSet[key]; !seen {
				unmatchedSet[key] = struct{}{}
				unmatched = append(unmatched, key.String())
			}
			continue
		}

		joined = append(joined, solar.JoinedReading{Row: row, Location: loc})
	}

	if len(unmatched) > 0 {
		return nil, &ConfigurationError{
			Country:       country,
			Reason:        "readings reference locations missing from the registry",
			UnmatchedKeys: unmatched,
		}
	}

	return joined, nil
}
