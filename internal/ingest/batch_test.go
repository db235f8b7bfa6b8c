package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsight/solar-consumer/internal/solar"
)

func TestBuildBatchesGroupsPerLocationInStableOrder(t *testing.T) {
	joined := []solar.JoinedReading{
		{Row: solar.ReadingRow{TimestampUTC: ts(t, "2025-01-01T00:00:00Z"), GenerationWatts: 1}, Location: solar.Location{ID: "loc-b"}},
		{Row: solar.ReadingRow{TimestampUTC: ts(t, "2025-01-01T00:00:00Z"), GenerationWatts: 2}, Location: solar.Location{ID: "loc-a"}},
		{Row: solar.ReadingRow{TimestampUTC: ts(t, "2025-01-01T01:00:00Z"), GenerationWatts: 3}, Location: solar.Location{ID: "loc-b"}},
	}

	batches := BuildBatches(joined)
	require.Len(t, batches, 2)

	assert.Equal(t, "loc-b", batches[0].LocationID)
	require.Len(t, batches[0].Values, 2)
	assert.Equal(t, float64(1), batches[0].Values[0].ValueWatts)
	assert.Equal(t, float64(3), batches[0].Values[1].ValueWatts)

	assert.Equal(t, "loc-a", batches[1].LocationID)
	require.Len(t, batches[1].Values, 1)
	assert.Equal(t, float64(2), batches[1].Values[0].ValueWatts)
}

func TestBuildBatchesEmptyInput(t *testing.T) {
	assert.Empty(t, BuildBatches(nil))
}
