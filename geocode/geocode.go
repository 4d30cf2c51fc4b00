// Package geocode resolves free-text place names to coordinates.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-crisislens/apperr"
	"go-crisislens/metrics"

	"googlemaps.github.io/maps"
)

const adapterName = "geocoder"

// Point is a WGS84 coordinate pair.
type Point struct {
	Lon float64
	Lat float64
}

// Geocoder is the Geocoding Adapter contract. ok is false when the service
// answered but knows no such place.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (p Point, ok bool, err error)
}

// GoogleGeocoder forward-geocodes with the Google Maps Geocoding API.
type GoogleGeocoder struct {
	client  *maps.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewGoogleGeocoder creates a geocoder for apiKey. Extra options are passed
// to the maps client (for example maps.WithBaseURL in tests).
func NewGoogleGeocoder(apiKey string, timeout time.Duration, m *metrics.Metrics, opts ...maps.ClientOption) (*GoogleGeocoder, error) {
	if apiKey == "" {
		return nil, errors.New("MAPS_CREDENTIALS environment variable not set")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleGeocoder{client: client, timeout: timeout, metrics: m}, nil
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, name string) (Point, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: name})
	if err != nil {
		g.metrics.ObserveAdapter(adapterName, metrics.OutcomeFailure, time.Since(start))
		return Point{}, false, &apperr.AdapterError{Adapter: adapterName, Err: err}
	}
	g.metrics.ObserveAdapter(adapterName, metrics.OutcomeSuccess, time.Since(start))

	if len(results) == 0 {
		return Point{}, false, nil
	}
	loc := results[0].Geometry.Location
	return Point{Lon: loc.Lng, Lat: loc.Lat}, true, nil
}
