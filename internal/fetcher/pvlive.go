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

// PVLiveFetcher polls the Sheffield Solar PV_Live API for GB generation
// per grid supply point. The regime ("in-day" or "day-after") tags every
// row so the engine can derive the observer name from the data.
type PVLiveFetcher struct {
	regime  string
	gspIDs  []int
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewPVLiveFetcher builds the GB fetcher. gspIDs defaults to the national
// aggregate (gsp 0) when empty.
func NewPVLiveFetcher(client *http.Client, regime string, gspIDs []int) *PVLiveFetcher {
	if len(gspIDs) == 0 {
		gspIDs = []int{0}
	}
	return &PVLiveFetcher{
		regime:  regime,
		gspIDs:  gspIDs,
		baseURL: "https://api.solar.sheffield.ac.uk/pvlive/api/v4/gsp",
		httpCfg: httpx.ClientConfig{Client: client, Backoff: httpx.DefaultBackoff},
		circuit: httpx.NewBreaker("pvlive"),
	}
}

func (f *PVLiveFetcher) Country() string { return "gb" }

// Fetch pulls the latest settlement periods for every configured GSP.
// PV_Live reports generation in MW and capacity in MWp.
func (f *PVLiveFetcher) Fetch(ctx context.Context) (solar.ReadingTable, error) {
	table := solar.ReadingTable{Country: "gb"}

	for _, gspID := range f.gspIDs {
		gspID := gspID
		buildRequest := func() (*http.Request, error) {
			values := url.Values{}
			values.Set("extra_fields", "capacity_mwp")
			values.Set("data_format", "json")

			u := fmt.Sprintf("%s/%d?%s", f.baseURL, gspID, values.Encode())
			return http.NewRequest(http.MethodGet, u, nil)
		}

		resp, err := httpx.Do(ctx, f.httpCfg, f.circuit, buildRequest)
		if err != nil {
			return solar.ReadingTable{}, fmt.Errorf("pvlive gsp %d: %w", gspID, err)
		}

		// data rows follow meta order: gsp_id, datetime_gmt, generation_mw, capacity_mwp
		var payload struct {
			Data [][]any `json:"data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			return solar.ReadingTable{}, fmt.Errorf("pvlive gsp %d: %w", gspID, err)
		}

		for _, record := range payload.Data {
			if len(record) < 4 {
				continue
			}
			datetime, ok := record[1].(string)
			if !ok {
				continue
			}
			ts, err := time.Parse("2006-01-02T15:04:05Z", datetime)
			if err != nil {
				continue
			}
			generationMW, _ := record[2].(float64)
			capacityMWP, _ := record[3].(float64)

			table.Rows = append(table.Rows, solar.ReadingRow{
				TimestampUTC:          ts.UTC(),
				JoinKey:               solar.NumericKey(int64(gspID)),
				GenerationWatts:       generationMW * 1e6,
				ReportedCapacityWatts: capacityMWP * 1e6,
				ObserverTag:           f.regime,
			})
		}
	}

	return table, nil
}
