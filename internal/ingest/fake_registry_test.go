package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gridsight/solar-consumer/internal/registry"
	"github.com/gridsight/solar-consumer/internal/solar"
)

type capacityCall struct {
	LocationID string
	Watts      int64
	ValidFrom  time.Time
}

type observationCall struct {
	LocationID string
	Observer   string
	Values     []registry.ObservationValue
}

// fakeRegistry is an in-memory Registry that records every call.
type fakeRegistry struct {
	mu        sync.Mutex
	observers map[string]struct{}
	locations []registry.LocationSummary
	nextID    int

	listObserverCalls   int
	createObserverCalls []string
	createLocationCalls []registry.CreateLocationParams
	capacityCalls       []capacityCall
	observationCalls    []observationCall

	failCreateObserver map[string]error
	failCapacityFor    map[string]error
	failObservationFor map[string]error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{observers: make(map[string]struct{})}
}

func (f *fakeRegistry) addLocation(name string, kind solar.LocationKind, capacityWatts int64, metadata map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("loc-%d", f.nextID)
	f.locations = append(f.locations, registry.LocationSummary{
		ID:                     id,
		Name:                   name,
		Kind:                   kind,
		EffectiveCapacityWatts: capacityWatts,
		Metadata:               metadata,
	})
	return id
}

func (f *fakeRegistry) ListObservers(_ context.Context, names []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listObserverCalls++

	var existing []string
	for _, name := range names {
		if _, ok := f.observers[name]; ok {
			existing = append(existing, name)
		}
	}
	return existing, nil
}

func (f *fakeRegistry) CreateObserver(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createObserverCalls = append(f.createObserverCalls, name)

	if err, ok := f.failCreateObserver[name]; ok {
		return err
	}
	f.observers[name] = struct{}{}
	return nil
}

func (f *fakeRegistry) ListLocations(_ context.Context, kind solar.LocationKind, _ string) ([]registry.LocationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []registry.LocationSummary
	for _, loc := range f.locations {
		if loc.Kind == kind {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (f *fakeRegistry) CreateLocation(_ context.Context, p registry.CreateLocationParams) (string, error) {
	f.mu.Lock()
	f.createLocationCalls = append(f.createLocationCalls, p)
	f.mu.Unlock()

	return f.addLocation(p.Name, p.Kind, p.InitialCapacityWatts, p.Metadata), nil
}

func (f *fakeRegistry) UpdateLocationCapacity(_ context.Context, locationID, _ string, watts int64, validFrom time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capacityCalls = append(f.capacityCalls, capacityCall{LocationID: locationID, Watts: watts, ValidFrom: validFrom})

	if err, ok := f.failCapacityFor[locationID]; ok {
		return err
	}
	return nil
}

func (f *fakeRegistry) CreateObservations(_ context.Context, locationID, _, observer string, values []registry.ObservationValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observationCalls = append(f.observationCalls, observationCall{LocationID: locationID, Observer: observer, Values: values})

	if err, ok := f.failObservationFor[locationID]; ok {
		return err
	}
	return nil
}
