package sitestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsight/solar-consumer/internal/solar"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "sites.db"))
	require.NoError(t, err)
	return store
}

func nlProfile(t *testing.T) solar.CountryProfile {
	t.Helper()
	profile, err := solar.ProfileFor("nl")
	require.NoError(t, err)
	return profile
}

func nlRow(at time.Time, regionID int64, capacityWatts, generationWatts float64) solar.ReadingRow {
	return solar.ReadingRow{
		TimestampUTC:          at,
		JoinKey:               solar.NumericKey(regionID),
		ReportedCapacityWatts: capacityWatts,
		GenerationWatts:       generationWatts,
	}
}

func TestSaveGenerationCreatesSitesAndValues(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// National 100 GW, single region summing to the same within tolerance.
	table := solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at, 0, 100e9, 5e9),
		nlRow(at, 1, 100e9, 2e9),
	}}

	require.NoError(t, store.SaveGeneration(nlProfile(t), table))

	var sites []Site
	require.NoError(t, store.db.Order("client_site_name").Find(&sites).Error)
	require.Len(t, sites, 2)
	assert.Equal(t, "nl_national", sites[0].ClientSiteName)
	assert.Equal(t, "nl", sites[0].Country)
	assert.InDelta(t, 100e6, sites[0].CapacityKW, 1) // stored in kW

	var values []GenerationValue
	require.NoError(t, store.db.Find(&values).Error)
	assert.Len(t, values, 2)
}

func TestSaveGenerationBumpsCapacityOnDrift(t *testing.T) {
	store := newTestStore(t)
	profile := nlProfile(t)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	first := solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at, 0, 100e9, 5e9),
		nlRow(at, 1, 100e9, 2e9),
	}}
	require.NoError(t, store.SaveGeneration(profile, first))

	second := solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at.Add(time.Hour), 0, 110e9, 5e9),
		nlRow(at.Add(time.Hour), 1, 110e9, 2e9),
	}}
	require.NoError(t, store.SaveGeneration(profile, second))

	var site Site
	require.NoError(t, store.db.Where("client_site_name = ?", "nl_national").First(&site).Error)
	assert.InDelta(t, 110e6, site.CapacityKW, 1)
}

func TestSaveGenerationSkipsSubKilowattCapacityChange(t *testing.T) {
	store := newTestStore(t)
	profile := nlProfile(t)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveGeneration(profile, solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at, 0, 100e9, 5e9),
		nlRow(at, 1, 100e9, 2e9),
	}}))

	// 500 W more: below the 1 kW bump threshold.
	require.NoError(t, store.SaveGeneration(profile, solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at.Add(time.Hour), 0, 100e9+500, 5e9),
		nlRow(at.Add(time.Hour), 1, 100e9+500, 2e9),
	}}))

	var site Site
	require.NoError(t, store.db.Where("client_site_name = ?", "nl_national").First(&site).Error)
	assert.InDelta(t, 100e6, site.CapacityKW, 0.001)
}

func TestSaveGenerationNLCrossCheckAbortsBeforeAnyInsert(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// Regional sum is 60% of national: well outside the 0.1% tolerance.
	table := solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at, 0, 100e9, 5e9),
		nlRow(at, 1, 60e9, 2e9),
	}}

	err := store.SaveGeneration(nlProfile(t), table)

	var integrityErr *DataIntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Equal(t, "nl", integrityErr.Country)
	assert.InDelta(t, 100e6, integrityErr.NationalKW, 1)
	assert.InDelta(t, 60e6, integrityErr.RegionalSumKW, 1)

	var count int64
	require.NoError(t, store.db.Model(&GenerationValue{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, store.db.Model(&Site{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSaveGenerationZeroNationalCapacityFails(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	table := solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at, 0, 0, 5e9),
		nlRow(at, 1, 60e9, 2e9),
	}}

	var integrityErr *DataIntegrityError
	require.ErrorAs(t, store.SaveGeneration(nlProfile(t), table), &integrityErr)
}

func TestSaveGenerationSkipsValidationWithoutNationalRow(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// Only regional rows: nothing to cross-check, rows still persist.
	table := solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at, 1, 60e9, 2e9),
	}}

	require.NoError(t, store.SaveGeneration(nlProfile(t), table))

	var count int64
	require.NoError(t, store.db.Model(&GenerationValue{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSaveGenerationEmptyTableIsNoOp(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveGeneration(nlProfile(t), solar.ReadingTable{Country: "nl"}))
}

func TestSaveGenerationIgnoresRowsWithoutSeedEntry(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	table := solar.ReadingTable{Country: "nl", Rows: []solar.ReadingRow{
		nlRow(at, 99, 60e9, 2e9),
	}}

	require.NoError(t, store.SaveGeneration(nlProfile(t), table))

	var count int64
	require.NoError(t, store.db.Model(&Site{}).Count(&count).Error)
	assert.Zero(t, count)
}
