package fetcher

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gridsight/solar-consumer/internal/httpx"
	"github.com/gridsight/solar-consumer/internal/solar"
)

// ENTSO-E transparency platform request constants: realised generation
// (A75/A16) for solar (B16) in the DE-LU bidding zone.
const (
	entsoeDocumentType = "A75"
	entsoeProcessType  = "A16"
	entsoeDomainDELU   = "10Y1001A1001A82H"
	entsoePsrSolar     = "B16"
)

// entsoeTSOZones maps the control-area EIC codes reported per TimeSeries
// to the TSO names used as join keys.
var entsoeTSOZones = map[string]string{
	"10YDE-VE-------2": "50Hertz",
	"10YDE-RWENET---I": "Amprion",
	"10YDE-EON------1": "TenneT",
	"10YDE-ENBW-----N": "TransnetBW",
}

// EntsoeFetcher polls the ENTSO-E transparency API for German solar
// generation per TSO zone. ENTSO-E reports generation only; the installed
// capacity per zone is attached from the static TSO capacity table.
type EntsoeFetcher struct {
	apiKey        string
	baseURL       string
	capacityWatts map[string]int64
	httpCfg       httpx.ClientConfig
	circuit       *gobreaker.CircuitBreaker
}

// NewEntsoeFetcher builds the DE fetcher.
func NewEntsoeFetcher(client *http.Client, apiKey string) (*EntsoeFetcher, error) {
	catalog, err := solar.LoadSeedCatalog("de")
	if err != nil {
		return nil, err
	}
	capacities := make(map[string]int64, len(catalog.Entries))
	for _, entry := range catalog.Entries {
		capacities[entry.JoinKey] = entry.CapacityWatts
	}

	return &EntsoeFetcher{
		apiKey:        apiKey,
		baseURL:       "https://web-api.tp.entsoe.eu/api",
		capacityWatts: capacities,
		httpCfg:       httpx.ClientConfig{Client: client, Backoff: httpx.DefaultBackoff},
		circuit:       httpx.NewBreaker("entsoe"),
	}, nil
}

func (f *EntsoeFetcher) Country() string { return "de" }

// entsoeDocument is the GL_MarketDocument subset this consumer reads. Each
// TimeSeries carries one zone; points are positioned within a period and
// their timestamps follow from the period start and resolution.
type entsoeDocument struct {
	TimeSeries []struct {
		Zone    string `xml:"inBiddingZone_Domain.mRID"`
		PsrType string `xml:"MktPSRType>psrType"`
		Periods []struct {
			Start      string `xml:"timeInterval>start"`
			Resolution string `xml:"resolution"`
			Points     []struct {
				Position   int     `xml:"position"`
				QuantityMW float64 `xml:"quantity"`
			} `xml:"Point"`
		} `xml:"Period"`
	} `xml:"TimeSeries"`
}

// Fetch pulls the last 24 hours of realised solar generation. ENTSO-E
// reports MW; everything is converted to watts before leaving.
func (f *EntsoeFetcher) Fetch(ctx context.Context) (solar.ReadingTable, error) {
	if f.apiKey == "" {
		return solar.ReadingTable{}, fmt.Errorf("entsoe api key is not configured")
	}

	now := time.Now().UTC().Truncate(time.Hour)
	start := now.Add(-24 * time.Hour)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("documentType", entsoeDocumentType)
		values.Set("processType", entsoeProcessType)
		values.Set("in_Domain", entsoeDomainDELU)
		values.Set("psrType", entsoePsrSolar)
		values.Set("periodStart", start.Format("200601021504"))
		values.Set("periodEnd", now.Format("200601021504"))
		values.Set("securityToken", f.apiKey)

		return http.NewRequest(http.MethodGet, f.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := httpx.Do(ctx, f.httpCfg, f.circuit, buildRequest)
	if err != nil {
		return solar.ReadingTable{}, fmt.Errorf("entsoe: %w", err)
	}
	defer resp.Body.Close()

	var doc entsoeDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return solar.ReadingTable{}, fmt.Errorf("entsoe: %w", err)
	}

	table := solar.ReadingTable{Country: "de"}
	for _, series := range doc.TimeSeries {
		if series.PsrType != "" && series.PsrType != entsoePsrSolar {
			continue
		}

		tso, ok := f.tsoForZone(series.Zone)
		if !ok {
			log.Printf("entsoe: unknown bidding zone %q; skipping series", series.Zone)
			continue
		}

		for _, period := range series.Periods {
			periodStart, err := time.Parse(time.RFC3339, period.Start)
			if err != nil {
				log.Printf("entsoe: bad period start %q for %s; skipping period", period.Start, tso)
				continue
			}
			step, err := parseEntsoeResolution(period.Resolution)
			if err != nil {
				log.Printf("entsoe: %v for %s; skipping period", err, tso)
				continue
			}

			for _, point := range period.Points {
				table.Rows = append(table.Rows, solar.ReadingRow{
					TimestampUTC:          periodStart.UTC().Add(time.Duration(point.Position-1) * step),
					JoinKey:               solar.TextKey(tso),
					GenerationWatts:       point.QuantityMW * 1e6,
					ReportedCapacityWatts: float64(f.capacityWatts[tso]),
				})
			}
		}
	}

	return table, nil
}

// tsoForZone resolves a series zone to a TSO name. Zones already carrying
// a TSO name pass through unchanged.
func (f *EntsoeFetcher) tsoForZone(zone string) (string, bool) {
	if tso, ok := entsoeTSOZones[zone]; ok {
		return tso, true
	}
	if _, ok := f.capacityWatts[zone]; ok {
		return zone, true
	}
	return "", false
}

// parseEntsoeResolution parses the ISO 8601 durations ENTSO-E uses for
// period resolution (PT15M, PT30M, PT60M, PT1H).
func parseEntsoeResolution(resolution string) (time.Duration, error) {
	switch {
	case resolution == "PT1H":
		return time.Hour, nil
	case strings.HasPrefix(resolution, "PT") && strings.HasSuffix(resolution, "M"):
		var minutes int
		if _, err := fmt.Sscanf(resolution, "PT%dM", &minutes); err != nil || minutes <= 0 {
			return 0, fmt.Errorf("bad resolution %q", resolution)
		}
		return time.Duration(minutes) * time.Minute, nil
	default:
		return 0, fmt.Errorf("bad resolution %q", resolution)
	}
}
