// Package geocoding resolves postal addresses to WGS84 coordinates with the
// OpenStreetMap Nominatim service.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultURL       = "https://nominatim.openstreetmap.org/search"
	DefaultUserAgent = "aac_checker" // Required by Nominatim ToS
	DefaultDelay     = time.Second
	DefaultTimeout   = 10 * time.Second
)

// Config configures the Nominatim client
type Config struct {
	URL          string
	UserAgent    string
	Email        string
	CountryCodes string // Comma separated ISO 3166-1 codes, empty for worldwide
	Delay        time.Duration
	Timeout      time.Duration
}

// DefaultConfig returns the public Nominatim endpoint with a 1 s delay
func DefaultConfig() Config {
	return Config{
		URL:       DefaultURL,
		UserAgent: DefaultUserAgent,
		Delay:     DefaultDelay,
		Timeout:   DefaultTimeout,
	}
}

// Geocoder converts addresses to coordinates
type Geocoder struct {
	cfg        Config
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
	log        zerolog.Logger
}

// Location represents a geocoded location
type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
}

// GeocodeFailure reports an address that could not be resolved. It is
// terminal for the query; the geocoder never retries.
type GeocodeFailure struct {
	Address string
	Err     error
}

func (e *GeocodeFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not resolve address %q", e.Address)
	}
	return fmt.Sprintf("could not resolve address %q: %v", e.Address, e.Err)
}

func (e *GeocodeFailure) Unwrap() error { return e.Err }

// ErrNoResult is wrapped by GeocodeFailure when Nominatim found nothing
var ErrNoResult = errors.New("no results found")

// NewGeocoder creates a new geocoder. Zero fields of cfg take defaults.
func NewGeocoder(cfg Config, log zerolog.Logger) *Geocoder {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &Geocoder{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		sleep: sleepContext,
		log:   log.With().Str("component", "geocoder").Logger(),
	}
}

// nominatimResponse represents the Nominatim API response
type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode converts an address to coordinates. It waits the configured delay
// before every request to respect the Nominatim usage policy.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, &GeocodeFailure{Address: address, Err: errors.New("address cannot be empty")}
	}

	params := url.Values{}
	params.Add("format", "json")
	params.Add("limit", "1")
	params.Add("q", address)
	if g.cfg.CountryCodes != "" {
		params.Add("countrycodes", g.cfg.CountryCodes)
	}
	if g.cfg.Email != "" {
		params.Add("email", g.cfg.Email)
	}
	reqURL := fmt.Sprintf("%s?%s", g.cfg.URL, params.Encode())

	if err := g.sleep(ctx, g.cfg.Delay); err != nil {
		return nil, &GeocodeFailure{Address: address, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &GeocodeFailure{Address: address, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", g.cfg.UserAgent)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Warn().Err(err).Str("address", address).Msg("geocoding request failed")
		return nil, &GeocodeFailure{Address: address, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &GeocodeFailure{Address: address, Err: fmt.Errorf("nominatim API returned status %d", resp.StatusCode)}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &GeocodeFailure{Address: address, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(results) == 0 {
		return nil, &GeocodeFailure{Address: address, Err: ErrNoResult}
	}

	result := results[0]
	lat, err := strconv.ParseFloat(result.Lat, 64)
	if err != nil {
		return nil, &GeocodeFailure{Address: address, Err: fmt.Errorf("parsing latitude: %w", err)}
	}
	lon, err := strconv.ParseFloat(result.Lon, 64)
	if err != nil {
		return nil, &GeocodeFailure{Address: address, Err: fmt.Errorf("parsing longitude: %w", err)}
	}

	g.log.Debug().
		Str("address", address).
		Float64("lat", lat).
		Float64("lon", lon).
		Dur("elapsed", time.Since(start)).
		Msg("address geocoded")

	return &Location{
		Latitude:  lat,
		Longitude: lon,
		Name:      result.DisplayName,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
