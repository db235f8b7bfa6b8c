package ingest

import (
	"sync"
	"time"
)

// RunReport summarizes one ingest run for the ops API and logs.
type RunReport struct {
	ID                 string    `json:"id"`
	Country            string    `json:"country"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
	RowCount           int       `json:"rowCount"`
	MatchedCount       int       `json:"matchedCount"`
	Observers          []string  `json:"observers,omitempty"`
	CapacityUpdates    int       `json:"capacityUpdates"`
	ObservationBatches int       `json:"observationBatches"`
	Error              string    `json:"error,omitempty"`
}

// ReportTracker keeps the latest run report per country. Concurrency-safe.
type ReportTracker struct {
	mu      sync.RWMutex
	reports map[string]*RunReport
}

// NewReportTracker creates an empty tracker.
func NewReportTracker() *ReportTracker {
	return &ReportTracker{reports: make(map[string]*RunReport)}
}

// Record stores the report as the latest for its country.
func (t *ReportTracker) Record(report *RunReport) {
	if report == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reports[report.Country] = report
}

// Latest returns the latest report for a country, or false when the
// country has not run yet.
func (t *ReportTracker) Latest(country string) (*RunReport, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.reports[country]
	return r, ok
}

// All returns the latest report of every country that has run.
func (t *ReportTracker) All() []*RunReport {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make([]*RunReport, 0, len(t.reports))
	for _, r := range t.reports {
		all = append(all, r)
	}
	return all
}
