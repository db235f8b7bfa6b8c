package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gridsight/solar-consumer/internal/httpx"
	"github.com/gridsight/solar-consumer/internal/solar"
)

// Client is the HTTP/JSON implementation of Registry.
type Client struct {
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient builds a registry client around a shared HTTP client.
func NewClient(client *http.Client, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: httpx.ClientConfig{
			Client:  client,
			Backoff: httpx.DefaultBackoff,
		},
		circuit: httpx.NewBreaker("registry"),
	}
}

var _ Registry = (*Client)(nil)

func (c *Client) ListObservers(ctx context.Context, names []string) ([]string, error) {
	values := url.Values{}
	values.Set("names", strings.Join(names, ","))

	var payload struct {
		Observers []struct {
			Name string `json:"name"`
		} `json:"observers"`
	}
	if err := c.getJSON(ctx, "/api/v1/observers", values, &payload); err != nil {
		return nil, fmt.Errorf("list observers: %w", err)
	}

	existing := make([]string, 0, len(payload.Observers))
	for _, o := range payload.Observers {
		existing = append(existing, o.Name)
	}
	return existing, nil
}

func (c *Client) CreateObserver(ctx context.Context, name string) error {
	body := map[string]any{"name": name}
	if err := c.postJSON(ctx, "/api/v1/observers", body, nil); err != nil {
		return fmt.Errorf("create observer %q: %w", name, err)
	}
	return nil
}

func (c *Client) ListLocations(ctx context.Context, kind solar.LocationKind, energySource string) ([]LocationSummary, error) {
	values := url.Values{}
	values.Set("kind", string(kind))
	values.Set("energy_source", energySource)

	var payload struct {
		Locations []LocationSummary `json:"locations"`
	}
	if err := c.getJSON(ctx, "/api/v1/locations", values, &payload); err != nil {
		return nil, fmt.Errorf("list locations kind=%s: %w", kind, err)
	}
	return payload.Locations, nil
}

func (c *Client) CreateLocation(ctx context.Context, p CreateLocationParams) (string, error) {
	body := map[string]any{
		"name":                   p.Name,
		"kind":                   p.Kind,
		"energy_source":          p.EnergySource,
		"geometry_wkt":           p.GeometryWKT,
		"initial_capacity_watts": p.InitialCapacityWatts,
		"metadata":               p.Metadata,
		"valid_from_utc":         p.ValidFrom.UTC().Format(time.RFC3339),
	}

	var payload struct {
		LocationID string `json:"location_id"`
	}
	if err := c.postJSON(ctx, "/api/v1/locations", body, &payload); err != nil {
		return "", fmt.Errorf("create location %q: %w", p.Name, err)
	}
	return payload.LocationID, nil
}

func (c *Client) UpdateLocationCapacity(ctx context.Context, locationID, energySource string, newCapacityWatts int64, validFrom time.Time) error {
	body := map[string]any{
		"energy_source":      energySource,
		"new_capacity_watts": newCapacityWatts,
		"valid_from_utc":     validFrom.UTC().Format(time.RFC3339),
	}
	path := "/api/v1/locations/" + url.PathEscape(locationID) + "/capacity"
	if err := c.postJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("update capacity for %s: %w", locationID, err)
	}
	return nil
}

func (c *Client) CreateObservations(ctx context.Context, locationID, energySource, observerName string, values []ObservationValue) error {
	wire := make([]map[string]any, 0, len(values))
	for _, v := range values {
		wire = append(wire, map[string]any{
			"timestamp_utc": v.TimestampUTC.UTC().Format(time.RFC3339),
			"value_watts":   v.ValueWatts,
		})
	}
	body := map[string]any{
		"energy_source": energySource,
		"observer_name": observerName,
		"values":        wire,
	}
	path := "/api/v1/locations/" + url.PathEscape(locationID) + "/observations"
	if err := c.postJSON(ctx, path, body, nil); err != nil {
		return fmt.Errorf("create observations for %s: %w", locationID, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	buildRequest := func() (*http.Request, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
