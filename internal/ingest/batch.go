package ingest

import (
	"github.com/gridsight/solar-consumer/internal/solar"
)

// BuildBatches groups the joined readings per location, preserving the
// relative order of each location's rows and the order in which locations
// first appear in the input.
func BuildBatches(joined []solar.JoinedReading) []solar.ObservationBatch {
	byLocation := make(map[string]int)
	var batches []solar.ObservationBatch

	for _, j := range joined {
		idx, ok := byLocation[j.Location.ID]
		if !ok {
			idx = len(batches)
			byLocation[j.Location.ID] = idx
			batches = append(batches, solar.ObservationBatch{LocationID: j.Location.ID})
		}

		batches[idx].Values = append(batches[idx].Values, solar.ObservationValue{
			TimestampUTC: j.Row.TimestampUTC,
			ValueWatts:   j.Row.GenerationWatts,
		})
	}

	return batches
}
