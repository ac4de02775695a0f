// Package geostore reads AAC zone datasets (GeoJSON, GeoPackage and zipped
// Shapefile) into feature collections.
package geostore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngmaloney/aac-checker/internal/crs"
	"github.com/ngmaloney/aac-checker/internal/geometry"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// Format identifies a dataset encoding
type Format string

const (
	FormatGeoJSON    Format = "geojson"
	FormatGeoPackage Format = "gpkg"
	FormatShapefile  Format = "shapefile"
)

// FormatFromPath guesses the format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".gpkg":
		return FormatGeoPackage, nil
	case ".zip", ".shp":
		return FormatShapefile, nil
	}
	return "", fmt.Errorf("unsupported file extension %q (want .geojson, .json, .gpkg, .zip or .shp)", filepath.Ext(path))
}

// FormatError reports a payload that cannot be read as georeferenced
// polygons. It is terminal for the load.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s dataset: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(f Format, format string, args ...any) error {
	return &FormatError{Format: f, Err: fmt.Errorf(format, args...)}
}

// Options tune ingestion
type Options struct {
	Layer string // GeoPackage layer to read; first feature layer when empty
}

// Store ingests datasets
type Store struct {
	opts Options
	log  zerolog.Logger
}

// New creates a store
func New(opts Options, log zerolog.Logger) *Store {
	return &Store{opts: opts, log: log.With().Str("component", "geostore").Logger()}
}

// Ingest parses a dataset with default options
func Ingest(raw []byte, format Format) (*models.FeatureCollection, []models.Notice, error) {
	return New(Options{}, zerolog.Nop()).Ingest(raw, format)
}

// Ingest parses raw as the given format. Features that cannot be decoded are
// skipped and reported as notices. The collection keeps the CRS it was
// stored in; when none is declared WGS84 is assumed.
func (s *Store) Ingest(raw []byte, format Format) (*models.FeatureCollection, []models.Notice, error) {
	var (
		r   *reading
		err error
	)
	switch format {
	case FormatGeoJSON:
		r, err = readGeoJSON(raw)
	case FormatGeoPackage:
		r, err = readGeoPackage(raw, s.opts.Layer)
	case FormatShapefile:
		r, err = readShapefileArchive(raw)
	default:
		return nil, nil, fmt.Errorf("unknown dataset format %q", format)
	}
	if err != nil {
		return nil, nil, err
	}
	return s.finish(format, r)
}

// IngestFile reads the dataset at path, detecting the format from its
// extension. A bare .shp is read in place next to its .dbf and .prj.
func (s *Store) IngestFile(path string) (*models.FeatureCollection, []models.Notice, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		r, err := readShapefile(path)
		if err != nil {
			return nil, nil, err
		}
		return s.finish(format, r)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading dataset: %w", err)
	}
	return s.Ingest(raw, format)
}

func (s *Store) finish(format Format, r *reading) (*models.FeatureCollection, []models.Notice, error) {
	fc := &models.FeatureCollection{
		Features: r.features,
		CRS:      r.crs,
		Source:   sourceOf(format),
		Layer:    r.layer,
	}
	notices := r.notices

	if !fc.CRS.IsDefined() {
		fc.CRS = crs.WGS84
		// GeoJSON coordinates are WGS84 by definition
		if !r.crsImplicit {
			fc.CRSAssumed = true
			notices = append(notices, models.Noticef(models.NoticeCRSAssumed,
				"no coordinate system declared, assuming %s", crs.WGS84))
		}
	}
	if !fc.CRS.Supported() {
		return nil, nil, &FormatError{Format: format, Err: fmt.Errorf("%w: %s", crs.ErrUnsupported, fc.CRS)}
	}

	s.log.Info().
		Str("format", string(format)).
		Str("layer", fc.Layer).
		Str("crs", fc.CRS.String()).
		Int("features", fc.Len()).
		Int("notices", len(notices)).
		Msg("dataset ingested")
	return fc, notices, nil
}

func sourceOf(f Format) models.SourceFormat {
	switch f {
	case FormatGeoPackage:
		return models.SourceGeoPackage
	case FormatShapefile:
		return models.SourceShapefile
	}
	return models.SourceGeoJSON
}

// reading accumulates what a format reader found
type reading struct {
	features    []models.Feature
	notices     []models.Notice
	crs         crs.CRS
	crsImplicit bool
	layer       string
}

// add appends a feature, or a skip notice when its geometry is unusable
func (r *reading) add(label string, g orb.Geometry, attrs models.Attributes, err error) {
	if err == nil {
		err = geometry.Check(g)
	}
	if err != nil {
		r.skip(label, err)
		return
	}
	r.features = append(r.features, models.Feature{
		Index:      len(r.features),
		Geometry:   g,
		Attributes: attrs,
	})
}

func (r *reading) skip(label string, err error) {
	r.notices = append(r.notices, models.Noticef(models.NoticeFeatureSkipped, "%s skipped: %v", label, err))
}

// errNoFeatures is wrapped when a container holds no readable layer
var errNoFeatures = errors.New("no feature layer found")
