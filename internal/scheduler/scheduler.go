package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hashicorp/go-multierror"

	"github.com/gridsight/solar-consumer/internal/fetcher"
	"github.com/gridsight/solar-consumer/internal/ingest"
	"github.com/gridsight/solar-consumer/internal/sitestore"
	"github.com/gridsight/solar-consumer/internal/solar"
)

// runTimeout bounds one country's fetch-and-sync.
const runTimeout = 5 * time.Minute

// Service periodically fetches readings per country and pushes them
// through the configured write paths.
type Service struct {
	scheduler    *gocron.Scheduler
	fetchers     map[string]fetcher.Fetcher
	orchestrator *ingest.Orchestrator
	sites        *sitestore.Store
	saveRegistry bool
	tracker      *ingest.ReportTracker
	interval     time.Duration
}

// New creates the scheduler service. sites may be nil (registry-only);
// saveRegistry false skips the registry path (site-db only).
func New(
	fetchers []fetcher.Fetcher,
	orchestrator *ingest.Orchestrator,
	sites *sitestore.Store,
	saveRegistry bool,
	tracker *ingest.ReportTracker,
	interval time.Duration,
) *Service {
	byCountry := make(map[string]fetcher.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byCountry[f.Country()] = f
	}
	return &Service{
		scheduler:    gocron.NewScheduler(time.UTC),
		fetchers:     byCountry,
		orchestrator: orchestrator,
		sites:        sites,
		saveRegistry: saveRegistry,
		tracker:      tracker,
		interval:     interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Service) Start() error {
	if len(s.fetchers) == 0 {
		log.Println("scheduler: no countries configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running ingest job")

		var wg sync.WaitGroup
		for country := range s.fetchers {
			country := country
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
				defer cancel()

				if _, err := s.RunOnce(ctx, country); err != nil {
					log.Printf("scheduler: ingest failed for %s: %v", country, err)
				}
			}()
		}
		wg.Wait()
		log.Println("scheduler: completed ingest job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce fetches and syncs a single country. It is also the entry point
// for manual triggers from the API.
func (s *Service) RunOnce(ctx context.Context, country string) (*ingest.RunReport, error) {
	f, ok := s.fetchers[country]
	if !ok {
		return nil, fmt.Errorf("country %q is not configured", country)
	}
	profile, err := solar.ProfileFor(country)
	if err != nil {
		return nil, err
	}

	table, err := f.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", country, err)
	}
	log.Printf("scheduler: fetched %d rows for %s", len(table.Rows), country)

	var runErr *multierror.Error
	var report *ingest.RunReport

	if s.saveRegistry {
		report, err = s.orchestrator.Run(ctx, profile, table)
		s.tracker.Record(report)
		if err != nil {
			runErr = multierror.Append(runErr, err)
		}
	}

	if s.sites != nil {
		if err := s.sites.SaveGeneration(profile, table); err != nil {
			runErr = multierror.Append(runErr, err)
		}
	}

	return report, runErr.ErrorOrNil()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Service) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
