package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsight/solar-consumer/internal/ingest"
)

func newTestApp(tracker *ingest.ReportTracker, trigger RunTrigger) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, tracker, trigger)
	return app
}

func decodeReport(t *testing.T, resp *http.Response) ingest.RunReport {
	t.Helper()
	var report ingest.RunReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	return report
}

func TestGetRunsListsAllCountries(t *testing.T) {
	tracker := ingest.NewReportTracker()
	tracker.Record(&ingest.RunReport{ID: "run-1", Country: "nl"})
	tracker.Record(&ingest.RunReport{ID: "run-2", Country: "be"})

	app := newTestApp(tracker, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Runs []ingest.RunReport `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Len(t, payload.Runs, 2)
}

func TestGetRunForCountry(t *testing.T) {
	tracker := ingest.NewReportTracker()
	tracker.Record(&ingest.RunReport{ID: "run-1", Country: "nl", RowCount: 26})

	app := newTestApp(tracker, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/nl", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	report := decodeReport(t, resp)
	assert.Equal(t, "run-1", report.ID)
	assert.Equal(t, 26, report.RowCount)
}

func TestGetRunForCountryWithoutRuns(t *testing.T) {
	app := newTestApp(ingest.NewReportTracker(), nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/nl", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRunRejectsBadCountryParam(t *testing.T) {
	app := newTestApp(ingest.NewReportTracker(), nil)

	for _, param := range []string{"123", "NLD", "N1"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+param, nil))
		require.NoError(t, err, param)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, param)
	}
}

func TestPostRunTriggersCountry(t *testing.T) {
	var triggered string
	trigger := func(_ context.Context, country string) (*ingest.RunReport, error) {
		triggered = country
		return &ingest.RunReport{ID: "run-9", Country: country}, nil
	}

	app := newTestApp(ingest.NewReportTracker(), trigger)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/runs/nl", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nl", triggered)
	assert.Equal(t, "run-9", decodeReport(t, resp).ID)
}

func TestPostRunConfigurationErrorIsUnprocessable(t *testing.T) {
	trigger := func(_ context.Context, country string) (*ingest.RunReport, error) {
		return nil, &ingest.ConfigurationError{Country: country, Reason: "bad join keys"}
	}

	app := newTestApp(ingest.NewReportTracker(), trigger)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/runs/gb", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPostRunTransportErrorReturnsPartialReport(t *testing.T) {
	trigger := func(_ context.Context, country string) (*ingest.RunReport, error) {
		report := &ingest.RunReport{ID: "run-partial", Country: country, Error: "capacity-update failed"}
		return report, &ingest.TransportError{Phase: "capacity-update", Err: errors.New("boom")}
	}

	app := newTestApp(ingest.NewReportTracker(), trigger)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/runs/nl", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "run-partial", decodeReport(t, resp).ID)
}
