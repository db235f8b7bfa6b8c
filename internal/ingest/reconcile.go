package ingest

import (
	"math"

	"github.com/gridsight/solar-consumer/internal/solar"
)

// DefaultDriftTolerance is the relative capacity mismatch below which no
// update is issued. Small reporting noise must not churn the registry.
const DefaultDriftTolerance = 0.02

// ReconcileCapacity compares the registry's recorded capacity with each
// location's reported capacities and emits at most one update command per
// location: the one at the latest drifting timestamp. Output order follows
// first appearance of each location in the joined input.
func ReconcileCapacity(joined []solar.JoinedReading, tolerance float64) []solar.CapacityUpdateCommand {
	if tolerance <= 0 {
		tolerance = DefaultDriftTolerance
	}

	latest := make(map[string]solar.ReadingRow)
	var order []string

	for _, j := range joined {
		ratio := float64(j.Location.EffectiveCapacityWatts) / j.Row.ReportedCapacityWatts
		if math.Abs(ratio-1) <= tolerance {
			continue
		}

		current, seen := latest[j.Location.ID]
		if !seen {
			order = append(order, j.Location.ID)
		}
		if !seen || j.Row.TimestampUTC.After(current.TimestampUTC) {
			latest[j.Location.ID] = j.Row
		}
	}

	commands := make([]solar.CapacityUpdateCommand, 0, len(order))
	for _, id := range order {
		row := latest[id]
		commands = append(commands, solar.CapacityUpdateCommand{
			LocationID:       id,
			NewCapacityWatts: int64(math.Round(row.ReportedCapacityWatts)),
			ValidFrom:        row.TimestampUTC,
		})
	}
	return commands
}
