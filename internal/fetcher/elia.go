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

// EliaFetcher polls the Elia open-data API for Belgian solar generation,
// national ("Belgium") and per region.
type EliaFetcher struct {
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewEliaFetcher builds the BE fetcher. The Elia open-data API needs no
// API key.
func NewEliaFetcher(client *http.Client) *EliaFetcher {
	return &EliaFetcher{
		baseURL: "https://opendata.elia.be/api/explore/v2.1/catalog/datasets/ods087/records",
		httpCfg: httpx.ClientConfig{Client: client, Backoff: httpx.DefaultBackoff},
		circuit: httpx.NewBreaker("elia"),
	}
}

func (f *EliaFetcher) Country() string { return "be" }

// Fetch pulls the last day of measured generation. Elia reports MW;
// everything is converted to watts before leaving.
func (f *EliaFetcher) Fetch(ctx context.Context) (solar.ReadingTable, error) {
	since := time.Now().UTC().AddDate(0, 0, -1)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("where", fmt.Sprintf("datetime >= date'%s'", since.Format("2006-01-02")))
		values.Set("order_by", "datetime")
		values.Set("limit", "100")

		return http.NewRequest(http.MethodGet, f.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := httpx.Do(ctx, f.httpCfg, f.circuit, buildRequest)
	if err != nil {
		return solar.ReadingTable{}, fmt.Errorf("elia: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Datetime            string  `json:"datetime"`
			Region              string  `json:"region"`
			MeasuredMW          float64 `json:"realtime"`
			MonitoredCapacityMW float64 `json:"monitoredcapacity"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return solar.ReadingTable{}, fmt.Errorf("elia: %w", err)
	}

	table := solar.ReadingTable{Country: "be"}
	for _, item := range payload.Results {
		ts, err := time.Parse(time.RFC3339, item.Datetime)
		if err != nil {
			continue
		}

		table.Rows = append(table.Rows, solar.ReadingRow{
			TimestampUTC:          ts.UTC(),
			JoinKey:               solar.TextKey(item.Region),
			GenerationWatts:       item.MeasuredMW * 1e6,
			ReportedCapacityWatts: item.MonitoredCapacityMW * 1e6,
		})
	}

	return table, nil
}
