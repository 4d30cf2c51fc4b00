package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-crisislens/apperr"
	"go-crisislens/metrics"
)

const defaultUserAgent = "crisislens-geocoder/1.0"

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimGeocoder forward-geocodes against an OpenStreetMap Nominatim
// instance. Useful where no Maps key is available.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

func NewNominatimGeocoder(baseURL string, timeout time.Duration, m *metrics.Metrics) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, name string) (Point, bool, error) {
	start := time.Now()
	p, ok, err := g.geocode(ctx, name)
	if err != nil {
		g.metrics.ObserveAdapter(adapterName, metrics.OutcomeFailure, time.Since(start))
		return Point{}, false, &apperr.AdapterError{Adapter: adapterName, Err: err}
	}
	g.metrics.ObserveAdapter(adapterName, metrics.OutcomeSuccess, time.Since(start))
	return p, ok, nil
}

func (g *NominatimGeocoder) geocode(ctx context.Context, name string) (Point, bool, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return Point{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Point{}, false, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, false, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return Point{}, false, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return Point{}, false, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Point{}, false, fmt.Errorf("parse lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Point{}, false, fmt.Errorf("parse lon %q: %w", places[0].Lon, err)
	}
	return Point{Lon: lon, Lat: lat}, true, nil
}
