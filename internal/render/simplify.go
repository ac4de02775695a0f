// Package render prepares zone collections for display: simplification,
// highlight styling and export as a styled GeoJSON document.
package render

import (
	"fmt"

	"github.com/ngmaloney/aac-checker/internal/crs"
	"github.com/ngmaloney/aac-checker/internal/geometry"
	"github.com/ngmaloney/aac-checker/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// SimplifyOptions choose the Douglas-Peucker tolerance, in collection
// units, from the collection size
type SimplifyOptions struct {
	ThresholdFeatures int     // Above this count the coarse tolerance applies
	FineTolerance     float64
	CoarseTolerance   float64
}

// DefaultSimplifyOptions returns 0.001 up to 500 features, 0.003 above
func DefaultSimplifyOptions() SimplifyOptions {
	return SimplifyOptions{
		ThresholdFeatures: 500,
		FineTolerance:     0.001,
		CoarseTolerance:   0.003,
	}
}

// Tolerance returns the tolerance used for a collection of n features
func (o SimplifyOptions) Tolerance(n int) float64 {
	if n > o.ThresholdFeatures {
		return o.CoarseTolerance
	}
	return o.FineTolerance
}

// Simplify returns a simplified copy of fc. The input is not modified.
func Simplify(fc *models.FeatureCollection, opts SimplifyOptions) *models.FeatureCollection {
	dp := simplify.DouglasPeucker(opts.Tolerance(fc.Len()))
	return fc.Map(crs.Undefined, func(f models.Feature) models.Feature {
		if f.Geometry == nil {
			return f
		}
		return f.WithGeometry(simplifyGeometry(dp, f.Geometry))
	})
}

func simplifyGeometry(dp *simplify.DouglasPeuckerSimplifier, g orb.Geometry) orb.Geometry {
	s := dp.Simplify(orb.Clone(g))
	// Collapsed exteriors fall back to the original shape
	if geometry.Check(s) != nil {
		return g
	}
	return s
}

// ForDisplay simplifies fc and reprojects the result to WGS84
func ForDisplay(fc *models.FeatureCollection, opts SimplifyOptions) (*models.FeatureCollection, error) {
	simplified := Simplify(fc, opts)
	if fc.CRS.IsGeographic() {
		return simplified, nil
	}

	proj, err := fc.CRS.ToWGS84()
	if err != nil {
		return nil, fmt.Errorf("reprojecting for display: %w", err)
	}
	return simplified.Map(crs.WGS84, func(f models.Feature) models.Feature {
		return f.WithGeometry(geometry.Reproject(f.Geometry, proj))
	}), nil
}
