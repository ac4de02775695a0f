// Package checker ties dataset loading, region filtering, containment
// resolution and map preparation together for the CLI and the TUI.
package checker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ngmaloney/aac-checker/internal/config"
	"github.com/ngmaloney/aac-checker/internal/geocoding"
	"github.com/ngmaloney/aac-checker/internal/geostore"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/ngmaloney/aac-checker/internal/region"
	"github.com/ngmaloney/aac-checker/internal/render"
	"github.com/ngmaloney/aac-checker/internal/zonelookup"
	"github.com/rs/zerolog"
)

// Geocoder resolves an address to WGS84 coordinates
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocoding.Location, error)
}

// Options configure every stage of a check
type Options struct {
	Store    geostore.Options
	Region   region.Options
	Resolver zonelookup.Options
	Simplify render.SimplifyOptions
}

// OptionsFromConfig maps the configuration file onto service options
func OptionsFromConfig(cfg *config.Config, log zerolog.Logger) Options {
	return Options{
		Store:  geostore.Options{Layer: cfg.Dataset.Layer},
		Region: region.Options{Field: cfg.Region.Field},
		Resolver: zonelookup.Options{
			BufferMeters:       cfg.Resolver.BufferMeters,
			PlainBufferDegrees: cfg.Resolver.PlainBufferDegrees,
			Logger:             log,
		},
		Simplify: render.SimplifyOptions{
			ThresholdFeatures: cfg.Simplify.ThresholdFeatures,
			FineTolerance:     cfg.Simplify.FineTolerance,
			CoarseTolerance:   cfg.Simplify.CoarseTolerance,
		},
	}
}

// DefaultOptions returns the options of the default configuration
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig(), zerolog.Nop())
}

// Service runs checks
type Service struct {
	geocoder Geocoder
	store    *geostore.Store
	opts     Options
	log      zerolog.Logger
}

// New creates a service. geocoder may be nil when only coordinates are
// checked.
func New(geocoder Geocoder, opts Options, log zerolog.Logger) *Service {
	return &Service{
		geocoder: geocoder,
		store:    geostore.New(opts.Store, log),
		opts:     opts,
		log:      log.With().Str("component", "checker").Logger(),
	}
}

// Dataset is a loaded, filtered and indexed zone collection
type Dataset struct {
	ID         string
	Name       string
	Full       *models.FeatureCollection // As ingested
	Collection *models.FeatureCollection // After the region filter
	RegionName string
	Region     region.Result
	Notices    []models.Notice // Ingestion, filtering and indexing notices

	resolver *zonelookup.Resolver
}

// Summary describes the dataset in one line
func (d *Dataset) Summary() string {
	s := fmt.Sprintf("%d zones détectées", d.Full.Len())
	if d.Collection.Len() != d.Full.Len() {
		s += fmt.Sprintf(", %d retenues pour le filtre", d.Collection.Len())
	}
	return s
}

// Load reads the dataset at path and narrows it to regionName
func (s *Service) Load(path, regionName string) (*Dataset, error) {
	fc, notices, err := s.store.IngestFile(path)
	if err != nil {
		return nil, err
	}
	return s.prepare(filepath.Base(path), fc, notices, regionName)
}

// LoadBytes reads an in-memory dataset and narrows it to regionName
func (s *Service) LoadBytes(name string, raw []byte, format geostore.Format, regionName string) (*Dataset, error) {
	fc, notices, err := s.store.Ingest(raw, format)
	if err != nil {
		return nil, err
	}
	return s.prepare(name, fc, notices, regionName)
}

func (s *Service) prepare(name string, fc *models.FeatureCollection, notices []models.Notice, regionName string) (*Dataset, error) {
	sel := region.Selector(regionName)
	res := s.opts.Region.Filter(fc, sel)

	resolver, err := zonelookup.New(res.Collection, s.opts.Resolver)
	if err != nil {
		return nil, fmt.Errorf("preparing resolver: %w", err)
	}

	ds := &Dataset{
		ID:         uuid.NewString(),
		Name:       name,
		Full:       fc,
		Collection: res.Collection,
		RegionName: sel.Name,
		Region:     res,
		resolver:   resolver,
	}
	ds.Notices = append(ds.Notices, notices...)
	ds.Notices = append(ds.Notices, res.Notices...)
	ds.Notices = append(ds.Notices, resolver.Notices()...)

	s.log.Info().
		Str("dataset", ds.ID).
		Str("name", name).
		Int("zones", fc.Len()).
		Int("kept", res.Collection.Len()).
		Str("region", regionName).
		Str("region_mode", string(res.Mode)).
		Msg("dataset ready")
	for _, n := range ds.Notices {
		s.log.Warn().Str("dataset", ds.ID).Str("kind", string(n.Kind)).Msg(n.Message)
	}
	return ds, nil
}

// Outcome is the answer to one query
type Outcome struct {
	Address  string             `json:"address,omitempty"`
	Location string             `json:"location,omitempty"` // Geocoder display name
	Point    models.QueryPoint  `json:"point"`
	Result   models.MatchResult `json:"result"`
	Tier     zonelookup.Tier    `json:"tier,omitempty"`
	Notices  []models.Notice    `json:"notices,omitempty"`
}

// ErrNoGeocoder is returned by CheckAddress on a service built without one
var ErrNoGeocoder = errors.New("no geocoder configured")

// CheckPoint tells whether point lies in a zone of ds
func (s *Service) CheckPoint(ds *Dataset, point models.QueryPoint) (Outcome, error) {
	if err := point.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("invalid coordinates: %w", err)
	}

	res, trace := ds.resolver.ResolveTrace(point)
	out := Outcome{Point: point, Result: res, Tier: trace.Tier, Notices: trace.Notices}
	s.log.Info().
		Str("dataset", ds.ID).
		Float64("lat", point.Lat).
		Float64("lon", point.Lon).
		Bool("matched", res.Matched).
		Str("tier", string(trace.Tier)).
		Msg("point checked")
	return out, nil
}

// CheckAddress geocodes address and checks the resulting point. A geocoding
// failure is returned as *geocoding.GeocodeFailure.
func (s *Service) CheckAddress(ctx context.Context, ds *Dataset, address string) (Outcome, error) {
	if s.geocoder == nil {
		return Outcome{}, ErrNoGeocoder
	}
	loc, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		var gf *geocoding.GeocodeFailure
		if !errors.As(err, &gf) {
			err = &geocoding.GeocodeFailure{Address: address, Err: err}
		}
		return Outcome{}, err
	}

	out, err := s.CheckPoint(ds, models.QueryPoint{Lat: loc.Latitude, Lon: loc.Longitude})
	if err != nil {
		return Outcome{}, err
	}
	out.Address = address
	out.Location = loc.Name
	return out, nil
}

// MapView prepares the display of ds for an outcome. The full filtered
// collection is drawn, simplified and in WGS84.
func (s *Service) MapView(ds *Dataset, out Outcome) (render.MapView, error) {
	return render.BuildMapView(ds.Collection, out.Result, out.Point, s.opts.Simplify)
}
