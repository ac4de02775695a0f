package models

import (
	"github.com/ngmaloney/aac-checker/internal/crs"
	"github.com/paulmach/orb"
)

// SourceFormat is the payload format a collection was read from
type SourceFormat string

const (
	SourceGeoJSON    SourceFormat = "geojson"
	SourceGeoPackage SourceFormat = "gpkg"
	SourceShapefile  SourceFormat = "shapefile"
)

// Feature is one AAC zone: a polygon or multipolygon and its attributes
type Feature struct {
	Index      int          `json:"index"` // Position in the ingested collection
	Geometry   orb.Geometry `json:"-"`     // orb.Polygon or orb.MultiPolygon
	Attributes Attributes   `json:"attributes"`
}

// WithGeometry returns a copy of the feature carrying geometry g
func (f Feature) WithGeometry(g orb.Geometry) Feature {
	f.Geometry = g
	return f
}

// FeatureCollection is an ordered set of features sharing one CRS
type FeatureCollection struct {
	Features   []Feature
	CRS        crs.CRS
	CRSAssumed bool // No CRS was declared and WGS84 was assumed
	Source     SourceFormat
	Layer      string
}

// Len returns the number of features
func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// Indexed reports whether the collection is served by the indexed
// resolution chain. GeoJSON documents in geographic coordinates are resolved
// as a plain list; one that declared a projected CRS is indexed, since the
// plain tolerance is expressed in degrees.
func (fc *FeatureCollection) Indexed() bool {
	if fc.Source != SourceGeoJSON {
		return true
	}
	return fc.CRS.IsDefined() && !fc.CRS.IsGeographic()
}

// Subset returns a new collection with the features at the given positions,
// kept in their original order. Out of range positions are ignored.
func (fc *FeatureCollection) Subset(positions []int) *FeatureCollection {
	keep := make(map[int]bool, len(positions))
	for _, p := range positions {
		keep[p] = true
	}
	out := fc.withFeatures(make([]Feature, 0, len(positions)))
	for i, f := range fc.Features {
		if keep[i] {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// Map returns a new collection whose features are f applied to each
// feature of fc. CRS metadata is carried over unless crsOut is defined.
func (fc *FeatureCollection) Map(crsOut crs.CRS, f func(Feature) Feature) *FeatureCollection {
	out := fc.withFeatures(make([]Feature, len(fc.Features)))
	for i, feat := range fc.Features {
		out.Features[i] = f(feat)
	}
	if crsOut.IsDefined() {
		out.CRS = crsOut
	}
	return out
}

// Bound returns the union of all feature bounds
func (fc *FeatureCollection) Bound() (orb.Bound, bool) {
	var b orb.Bound
	found := false
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !found {
			b = f.Geometry.Bound()
			found = true
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b, found
}

func (fc *FeatureCollection) withFeatures(features []Feature) *FeatureCollection {
	return &FeatureCollection{
		Features:   features,
		CRS:        fc.CRS,
		CRSAssumed: fc.CRSAssumed,
		Source:     fc.Source,
		Layer:      fc.Layer,
	}
}
