package ingest

import (
	"github.com/kelvins/geocoder"
)

// NewGoogleGeocoder adapts the Google geocoding API to GeocodeFunc for
// seed entries that ship without coordinates.
func NewGoogleGeocoder(apiKey string) GeocodeFunc {
	geocoder.ApiKey = apiKey
	return func(name, countryCode string) (float64, float64, error) {
		location, err := geocoder.Geocoding(geocoder.Address{
			State:   name,
			Country: countryCode,
		})
		if err != nil {
			return 0, 0, err
		}
		return location.Latitude, location.Longitude, nil
	}
}
