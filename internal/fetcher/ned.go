package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gridsight/solar-consumer/internal/httpx"
	"github.com/gridsight/solar-consumer/internal/solar"
)

// nedRegionCount covers the national total (0) plus the twelve provinces.
const nedRegionCount = 13

// NedFetcher polls the ned.nl API for Dutch solar generation, national
// and per province.
type NedFetcher struct {
	apiKey  string
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewNedFetcher builds the NL fetcher.
func NewNedFetcher(client *http.Client, apiKey string) *NedFetcher {
	return &NedFetcher{
		apiKey:  apiKey,
		baseURL: "https://api.ned.nl/v1/utilizations",
		httpCfg: httpx.ClientConfig{Client: client, Backoff: httpx.DefaultBackoff},
		circuit: httpx.NewBreaker("ned"),
	}
}

func (f *NedFetcher) Country() string { return "nl" }

// Fetch pulls today's quarter-hour utilizations for every region. The API
// reports produced power and the share of installed capacity it used, so
// the installed capacity is their quotient.
func (f *NedFetcher) Fetch(ctx context.Context) (solar.ReadingTable, error) {
	if f.apiKey == "" {
		return solar.ReadingTable{}, fmt.Errorf("ned api key is not configured")
	}

	table := solar.ReadingTable{Country: "nl"}
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for region := 0; region < nedRegionCount; region++ {
		region := region
		buildRequest := func() (*http.Request, error) {
			values := url.Values{}
			values.Set("point", fmt.Sprintf("%d", region))
			values.Set("type", "2")           // solar
			values.Set("granularity", "3")    // 15 minutes
			values.Set("classification", "2") // current
			values.Set("activity", "1")       // production
			values.Set("validfrom[after]", dayStart.Format("2006-01-02"))
			values.Set("validfrom[strictly_before]", dayStart.AddDate(0, 0, 1).Format("2006-01-02"))

			req, err := http.NewRequest(http.MethodGet, f.baseURL+"?"+values.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("X-AUTH-TOKEN", f.apiKey)
			req.Header.Set("accept", "application/json")
			return req, nil
		}

		resp, err := httpx.Do(ctx, f.httpCfg, f.circuit, buildRequest)
		if err != nil {
			return solar.ReadingTable{}, fmt.Errorf("ned region %d: %w", region, err)
		}

		var payload []struct {
			ValidFrom  string  `json:"validfrom"`
			CapacityKW float64 `json:"capacity"`
			Percentage float64 `json:"percentage"`
		}
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return solar.ReadingTable{}, fmt.Errorf("ned region %d: %w", region, err)
		}

		for _, item := range payload {
			ts, err := time.Parse(time.RFC3339, item.ValidFrom)
			if err != nil {
				continue
			}
			if item.Percentage <= 0 {
				continue
			}

			// "capacity" is the produced power in kW; percentage is the
			// share of installed capacity in use.
			table.Rows = append(table.Rows, solar.ReadingRow{
				TimestampUTC:          ts.UTC(),
				JoinKey:               solar.NumericKey(int64(region)),
				GenerationWatts:       item.CapacityKW * 1000,
				ReportedCapacityWatts: item.CapacityKW / item.Percentage * 1000,
			})
		}
	}

	return table, nil
}
