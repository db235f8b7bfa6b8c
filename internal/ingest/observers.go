package ingest

import (
	"context"
	"log"

	"github.com/gridsight/solar-consumer/internal/registry"
)

// ObserverProvisioner makes sure every observer required by a run exists
// in the registry before any observation is written.
type ObserverProvisioner struct {
	reg registry.Registry
}

// NewObserverProvisioner creates a provisioner over the given registry.
func NewObserverProvisioner(reg registry.Registry) *ObserverProvisioner {
	return &ObserverProvisioner{reg: reg}
}

// Ensure lists the required names, creates the missing ones concurrently,
// and waits for every creation to settle. It is idempotent: a second call
// with the same set issues zero creations. Any creation failure aborts the
// run, so the error is returned only after the group has settled.
func (p *ObserverProvisioner) Ensure(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	existing, err := p.reg.ListObservers(ctx, names)
	if err != nil {
		return &TransportError{Phase: "observer-provisioning", Err: err}
	}

	known := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		known[name] = struct{}{}
	}

	var group TaskGroup
	for _, name := range names {
		if _, ok := known[name]; ok {
			continue
		}
		name := name
		group.Go(name, func() error {
			log.Printf("ingest: creating observer %q", name)
			return p.reg.CreateObserver(ctx, name)
		})
	}

	return CombineFailures("observer-provisioning", group.Wait())
}
