package ingest

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/gridsight/solar-consumer/internal/registry"
	"github.com/gridsight/solar-consumer/internal/solar"
)

// Orchestrator sequences one ingest run: provision observers, resolve
// locations, join, reconcile capacities, write observations. The registry
// client is injected by the caller, which owns its lifetime.
type Orchestrator struct {
	reg       registry.Registry
	catalog   *Catalog
	observers *ObserverProvisioner
	tolerance float64
}

// NewOrchestrator builds an orchestrator. tolerance <= 0 selects the
// default drift tolerance.
func NewOrchestrator(reg registry.Registry, catalog *Catalog, tolerance float64) *Orchestrator {
	if tolerance <= 0 {
		tolerance = DefaultDriftTolerance
	}
	return &Orchestrator{
		reg:       reg,
		catalog:   catalog,
		observers: NewObserverProvisioner(reg),
		tolerance: tolerance,
	}
}

// Run executes one ingest run for a country. The returned report is
// always non-nil, also when the run failed partway.
//
// Failure semantics: the capacity-update and observation-write phases are
// independent failure domains issued as concurrent groups. A failing call
// never stops the rest of its group, and a failing group never stops the
// next phase; all failures are joined into the run error once everything
// has settled. Successes are never rolled back, so callers must treat a
// failing run as "some of this run's writes already took effect".
func (o *Orchestrator) Run(ctx context.Context, profile solar.CountryProfile, table solar.ReadingTable) (*RunReport, error) {
	report := &RunReport{
		ID:        uuid.NewString(),
		Country:   profile.Code,
		StartedAt: time.Now().UTC(),
		RowCount:  len(table.Rows),
	}

	err := o.run(ctx, profile, table, report)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
	}
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, profile solar.CountryProfile, table solar.ReadingTable, report *RunReport) error {
	// Phase 1: observer provisioning. A derivation failure is a
	// configuration error raised before any remote call.
	names, err := profile.ObserverNames(table)
	if err != nil {
		if len(table.Rows) == 0 {
			// Nothing to ingest and nothing to derive a name from.
			log.Printf("ingest: %s: empty input, nothing to do", profile.Code)
			return nil
		}
		return &ConfigurationError{Country: profile.Code, Reason: err.Error()}
	}
	if err := o.observers.Ensure(ctx, names); err != nil {
		return err
	}
	report.Observers = names

	// Phase 2: location resolution, bootstrapping if needed.
	locations, err := o.catalog.Resolve(ctx, profile)
	if err != nil {
		return err
	}
	if len(locations) == 0 {
		log.Printf("ingest: %s: no locations in registry and no bootstrap path; nothing to do", profile.Code)
		return nil
	}

	// Phase 3: join. An empty result from empty or all-invalid input is
	// the expected no-op; unmatched valid rows already errored inside.
	joined, err := Join(profile.Code, table.Rows, locations)
	if err != nil {
		return err
	}
	report.MatchedCount = len(joined)
	if len(joined) == 0 {
		log.Printf("ingest: %s: no joinable readings; nothing to write", profile.Code)
		return nil
	}

	var runErr *multierror.Error

	// Phase 4: capacity updates, one concurrent group. Last-writer-wins
	// on the registry side is upheld by always sending the capacity at
	// the latest drifting timestamp per location.
	commands := ReconcileCapacity(joined, o.tolerance)
	if len(commands) > 0 {
		var group TaskGroup
		for _, cmd := range commands {
			cmd := cmd
			group.Go(cmd.LocationID, func() error {
				return o.reg.UpdateLocationCapacity(
					ctx, cmd.LocationID, registry.EnergySourceSolarPV,
					cmd.NewCapacityWatts, cmd.ValidFrom,
				)
			})
		}
		outcomes := group.Wait()
		report.CapacityUpdates = len(commands)
		if err := CombineFailures("capacity-update", outcomes); err != nil {
			runErr = multierror.Append(runErr, err)
		}
	}

	// Phase 5: observation writes, one concurrent group. Runs regardless
	// of capacity-update failures. Every required observer gets each
	// location's batch.
	batches := BuildBatches(joined)

	var group TaskGroup
	for _, observer := range names {
		observer := observer
		for _, batch := range batches {
			batch := batch
			group.Go(batch.LocationID+"/"+observer, func() error {
				values := make([]registry.ObservationValue, 0, len(batch.Values))
				for _, v := range batch.Values {
					values = append(values, registry.ObservationValue{
						TimestampUTC: v.TimestampUTC,
						ValueWatts:   v.ValueWatts,
					})
				}
				return o.reg.CreateObservations(
					ctx, batch.LocationID, registry.EnergySourceSolarPV, observer, values,
				)
			})
		}
	}
	outcomes := group.Wait()
	report.ObservationBatches = len(batches) * len(names)
	if err := CombineFailures("observation-write", outcomes); err != nil {
		runErr = multierror.Append(runErr, err)
	}

	return runErr.ErrorOrNil()
}
